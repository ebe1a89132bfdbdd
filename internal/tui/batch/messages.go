package batch

import "github.com/elsanchez/insta-checker/internal/domain"

// Message types for async operations

type progressMsg struct {
	update Update
}

type feedClosedMsg struct{}

type runDoneMsg struct {
	summary *domain.Summary
	err     error
}
