package entity

// File is a rendered export ready to be handed to a delivery channel.
type File struct {
	Name     string
	MIMEType string
	Content  []byte
}
