package tryonRepository

const (
	queryCreateSession = `
		INSERT INTO tracking_sessions (
			id,
			user_id,
			preset,
			frames,
			tracked,
			degraded,
			lost,
			final_state,
			end_reason,
			trace_url,
			started_at,
			ended_at
		) VALUES (
			:id,
			:user_id,
			:preset,
			:frames,
			:tracked,
			:degraded,
			:lost,
			:final_state,
			:end_reason,
			:trace_url,
			:started_at,
			:ended_at
		)
	`

	queryGetSessionByID = `
		SELECT
			id,
			user_id,
			preset,
			frames,
			tracked,
			degraded,
			lost,
			final_state,
			end_reason,
			trace_url,
			started_at,
			ended_at
		FROM tracking_sessions
		WHERE id = :id
	`

	queryGetSessionsByUserID = `
		SELECT
			id,
			user_id,
			preset,
			frames,
			tracked,
			degraded,
			lost,
			final_state,
			end_reason,
			trace_url,
			started_at,
			ended_at
		FROM tracking_sessions
		WHERE user_id = :user_id
		ORDER BY ended_at DESC
		LIMIT :limit
	`
)
