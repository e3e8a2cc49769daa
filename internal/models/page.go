package models

// Theme is one of the characters a happiness page can be dressed in
type Theme struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	BackgroundColor string `json:"background_color"`
	CharacterImage  string `json:"character_image"`
	Description     string `json:"description"`
}

// PageSettings are the editable fields of a happiness page
type PageSettings struct {
	Slug            *string `json:"slug" binding:"omitempty,slug,max=64"`
	OverallMessage  *string `json:"overall_message" binding:"omitempty,max=500"`
	Theme           *string `json:"theme" binding:"omitempty,max=32"`
	NotFoundMessage *string `json:"not_found_message" binding:"omitempty,max=500"`
}

// PageMessage is a drafted message on a happiness page, keyed by recipient email
type PageMessage struct {
	RecipientEmail string `json:"recipient_email" binding:"required,email"`
	RecipientName  string `json:"recipient_name" binding:"required,max=100"`
	Message        string `json:"message" binding:"required,max=1000"`
	Emotion        string `json:"emotion" binding:"omitempty,max=32"`
}

// SavePageRequest is the body of POST /api/create/:creation_url
type SavePageRequest struct {
	Settings *PageSettings `json:"settings"`
	Messages []PageMessage `json:"messages" binding:"omitempty,dive"`
	Publish  bool          `json:"publish"`
}
