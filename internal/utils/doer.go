package utils

import "net/http"

// Doer 接口，支持 http.Client 和 RetryableHTTPClient
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}
