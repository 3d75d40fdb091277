package entity

type UserLoginData struct {
	ID       string
	Username string
	Email    string
}

// Anonymous reports whether the request carried no verified user.
func (u UserLoginData) Anonymous() bool {
	return u.ID == ""
}
