package model

// Question is one entry of the question bank. It is immutable after load.
type Question struct {
	ID       int      `json:"id"`
	Text     string   `json:"question"`
	ImageURL string   `json:"img,omitempty"`
	Options  []string `json:"options"`
	// Correct is the normalized (trimmed, uppercased) correct option.
	Correct string `json:"-"`
}

// QuestionForStudent is the student-facing view of a question (no answer key).
type QuestionForStudent struct {
	ID       int      `json:"id"`
	Text     string   `json:"question"`
	ImageURL string   `json:"img,omitempty"`
	Options  []string `json:"options"`
}

// ForStudent strips the answer key.
func (q Question) ForStudent() QuestionForStudent {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuestionForStudent{
		ID:       q.ID,
		Text:     q.Text,
		ImageURL: q.ImageURL,
		Options:  opts,
	}
}
