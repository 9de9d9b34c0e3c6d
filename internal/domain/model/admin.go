package model

// AdminUsername is the username of the singleton administrator row.
const AdminUsername = "admin"

// AdminCredential is the administrator identity created once on first run.
type AdminCredential struct {
	ID       int64
	Username string
	Secret   string
}
