package api

import "encoding/json"

// envelope is the {code, message, data} wrapper every endpoint returns.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Links carries the pagination navigation URLs of list endpoints.
type Links struct {
	First   string `json:"first,omitempty"`
	Last    string `json:"last,omitempty"`
	Current string `json:"current"`
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
}

// ListMeta carries the pagination counters of list endpoints.
type ListMeta struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalItems   int `json:"totalItems"`
	TotalPages   int `json:"totalPages"`
}

// ListResult is one decoded page of a list endpoint.
type ListResult[T any] struct {
	Items []T
	Links *Links
	Meta  *ListMeta
}

// decodeList decodes the {data, links?, meta?} payload of a list endpoint.
func decodeList[T any](data json.RawMessage) (*ListResult[T], error) {
	var payload struct {
		Data  []T       `json:"data"`
		Links *Links    `json:"links"`
		Meta  *ListMeta `json:"meta"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &Error{Kind: KindTransport, Message: "decode list payload", Err: err}
	}
	return &ListResult[T]{Items: payload.Data, Links: payload.Links, Meta: payload.Meta}, nil
}

// decodeInto decodes a payload into an existing value.
func decodeInto(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Kind: KindTransport, Message: "decode payload", Err: err}
	}
	return nil
}

// decodeItem decodes a single-object payload.
func decodeItem[T any](data json.RawMessage) (*T, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, &Error{Kind: KindTransport, Message: "decode payload", Err: err}
	}
	return &item, nil
}
