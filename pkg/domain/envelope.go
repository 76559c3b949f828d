package domain

// Envelope is the response body shape of every HTTP endpoint.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *TaskError `json:"error"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Fail(code ErrorCode, msg string) Envelope {
	return Envelope{Success: false, Error: &TaskError{Code: code, Message: msg}}
}
