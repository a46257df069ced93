package models

// Pagination describes the pagination block returned by every list endpoint
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination computes the page count for a result set
func NewPagination(page, limit int, total int64) *Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	}
}

// Response is the uniform envelope returned by every endpoint
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// OK wraps data in a success envelope
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Paginated wraps a list in a success envelope with a pagination block
func Paginated(data interface{}, p *Pagination) Response {
	return Response{Success: true, Data: data, Pagination: p}
}

// Fail wraps an error message in a failure envelope
func Fail(message string) Response {
	return Response{Success: false, Error: message}
}
