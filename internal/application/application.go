// Package application holds the contract shared by the use cases of the service.
package application

import "context"

// UseCase runs one command end to end, including its span, RED metrics and log line.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
