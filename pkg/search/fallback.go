package search

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Fallback tries Primary and, if it fails, Secondary once.
type Fallback struct {
	Primary   Searcher
	Secondary Searcher
	Log       *logrus.Entry
}

func (f *Fallback) Name() string {
	return f.Primary.Name() + "," + f.Secondary.Name()
}

func (f *Fallback) Search(ctx context.Context, t Target, q Query) (Result, error) {
	res, err := f.Primary.Search(ctx, t, q)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return res, err
	}
	logger(f.Log).WithFields(logrus.Fields{
		"fn":        "Search",
		"primary":   f.Primary.Name(),
		"secondary": f.Secondary.Name(),
		"error":     err,
	}).Debug("primary searcher failed, retrying")
	return f.Secondary.Search(ctx, t, q)
}
