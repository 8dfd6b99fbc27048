package dto

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// TaskSubmittedResponse acknowledges an accepted asynchronous operation.
type TaskSubmittedResponse struct {
	TaskID   string `json:"task_id"`
	Location string `json:"location"`
}
