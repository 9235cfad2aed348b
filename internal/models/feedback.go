package models

import "time"

// Feedback is a member comment stored in the feedbacks collection
type Feedback struct {
	UID       string    `json:"uid" firestore:"uid"`
	Email     string    `json:"email" firestore:"email"`
	FullName  string    `json:"fullName" firestore:"fullName"`
	Message   string    `json:"message" firestore:"message"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

type CreateFeedbackRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}
