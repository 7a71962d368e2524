package domain

import (
	"fmt"
	"strings"
	"time"
)

// Letter is a generated cover letter kept for the owner's history. Guest
// letters are stored without a user id.
type Letter struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	GuestIP     string    `json:"-"`
	JobTitle    string    `json:"job_title"`
	CompanyName string    `json:"company_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

type GenerateLetterRequest struct {
	JobTitle       string `json:"job_title"`
	CompanyName    string `json:"company_name"`
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text,omitempty"`
	Tone           string `json:"tone,omitempty"`
}

type GenerateLetterResponse struct {
	Letter        *Letter `json:"letter"`
	RemainingUses int     `json:"remaining_uses"`
}

func (r *GenerateLetterRequest) Normalize() {
	r.JobTitle = strings.TrimSpace(r.JobTitle)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.JobDescription = strings.TrimSpace(r.JobDescription)
	r.ResumeText = strings.TrimSpace(r.ResumeText)
	r.Tone = strings.ToLower(strings.TrimSpace(r.Tone))
}

func (r *GenerateLetterRequest) Validate() error {
	if r.JobTitle == "" {
		return fmt.Errorf("job_title is required")
	}
	if r.JobDescription == "" {
		return fmt.Errorf("job_description is required")
	}
	if len(r.JobDescription) > 20000 {
		return fmt.Errorf("job_description is too long")
	}
	if len(r.ResumeText) > 50000 {
		return fmt.Errorf("resume_text is too long")
	}
	return nil
}
