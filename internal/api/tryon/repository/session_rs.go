package tryonRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"OpticalFactory/internal/api/tryon"
	"OpticalFactory/internal/entity"
	contextPkg "OpticalFactory/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type TrackingSessionDB struct {
	ID         sql.NullString `db:"id"`
	UserID     sql.NullString `db:"user_id"`
	Preset     sql.NullString `db:"preset"`
	Frames     sql.NullInt64  `db:"frames"`
	Tracked    sql.NullInt64  `db:"tracked"`
	Degraded   sql.NullInt64  `db:"degraded"`
	Lost       sql.NullInt64  `db:"lost"`
	FinalState sql.NullString `db:"final_state"`
	EndReason  sql.NullString `db:"end_reason"`
	TraceURL   sql.NullString `db:"trace_url"`
	StartedAt  time.Time      `db:"started_at"`
	EndedAt    time.Time      `db:"ended_at"`
}

func (s TrackingSessionDB) toEntity() entity.TrackingSession {
	return entity.TrackingSession{
		ID:         s.ID.String,
		UserID:     s.UserID.String,
		Preset:     s.Preset.String,
		Frames:     int(s.Frames.Int64),
		Tracked:    int(s.Tracked.Int64),
		Degraded:   int(s.Degraded.Int64),
		Lost:       int(s.Lost.Int64),
		FinalState: s.FinalState.String,
		EndReason:  s.EndReason.String,
		TraceURL:   s.TraceURL.String,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *sessionRepository) CreateSession(c context.Context, session entity.TrackingSession) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":          session.ID,
		"user_id":     nullString(session.UserID),
		"preset":      session.Preset,
		"frames":      session.Frames,
		"tracked":     session.Tracked,
		"degraded":    session.Degraded,
		"lost":        session.Lost,
		"final_state": session.FinalState,
		"end_reason":  session.EndReason,
		"trace_url":   nullString(session.TraceURL),
		"started_at":  session.StartedAt,
		"ended_at":    session.EndedAt,
	}

	query, args, err := sqlx.Named(queryCreateSession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateSession")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": session.ID,
			"error":      err.Error(),
		}).Error("Database error when creating tracking session")
		return err
	}

	return nil
}

func (r *sessionRepository) GetSessionByID(c context.Context, id string) (entity.TrackingSession, error) {
	requestID := contextPkg.GetRequestID(c)
	var row TrackingSessionDB

	query, args, err := sqlx.Named(queryGetSessionByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionByID named query preparation err")
		return entity.TrackingSession{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.GetContext(c, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.TrackingSession{}, tryon.ErrSessionNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": id,
			"error":      err.Error(),
		}).Error("Database error when getting tracking session")
		return entity.TrackingSession{}, err
	}

	return row.toEntity(), nil
}

func (r *sessionRepository) GetSessionsByUserID(c context.Context, userID string, limit int) ([]entity.TrackingSession, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []TrackingSessionDB

	query, args, err := sqlx.Named(queryGetSessionsByUserID, map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionsByUserID named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"user_id":    userID,
			"error":      err.Error(),
		}).Error("Database error when listing tracking sessions")
		return nil, err
	}

	sessions := make([]entity.TrackingSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toEntity())
	}
	return sessions, nil
}
