package models

// Page is one page of a collection query.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
