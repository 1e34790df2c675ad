// Command align-renewals moves the next billing date of every live subscription to
// the coming January 1st.
package main

import (
	"context"
	"os"

	"github.com/kevin07696/membership-service/internal/bootstrap"
	"github.com/kevin07696/membership-service/internal/services/alignment"
	"github.com/kevin07696/membership-service/internal/services/batch"
)

func main() {
	os.Exit(bootstrap.RunJob(alignment.Job, os.Args[1:],
		func(ctx context.Context, app *bootstrap.App, opts batch.Options) (interface{}, bool, error) {
			summary, err := app.Aligner.Run(ctx, opts)
			if summary == nil {
				return nil, false, err
			}
			return summary, summary.HasErrors(), err
		}))
}
