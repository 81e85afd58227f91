// Package middleware define middlewares for pipeline stages.
package middleware

import "github.com/apkcloner/apkclone/internal/pipeline/context"

// Action is a function that takes a context and returns an error.
// It is used on every stage of the pipeline, although the stages are not
// aware of this generalization.
type Action func(ctx *context.Context) error
