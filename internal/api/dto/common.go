package dto

// Envelope is the uniform response wrapper: status is "success" for 2xx,
// "fail" for 4xx, and "error" for 5xx.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Results *int        `json:"results,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func Success(data interface{}) Envelope {
	return Envelope{Status: "success", Data: data}
}

func SuccessList(data interface{}, results int) Envelope {
	return Envelope{Status: "success", Data: data, Results: &results}
}

func Fail(message string) Envelope {
	return Envelope{Status: "fail", Message: message}
}

func FailWithDetails(message string, details interface{}) Envelope {
	return Envelope{Status: "fail", Message: message, Details: details}
}

func Error(message string) Envelope {
	return Envelope{Status: "error", Message: message}
}

// PaginatedData wraps a page of results with its paging metadata.
type PaginatedData struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

type PaginationParams struct {
	Page  int
	Limit int
}

func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
}

func (p *PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
