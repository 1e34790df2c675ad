// Command resolve-duplicates cancels all but one live subscription per gateway customer.
package main

import (
	"context"
	"os"

	"github.com/kevin07696/membership-service/internal/bootstrap"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/internal/services/duplicates"
)

func main() {
	os.Exit(bootstrap.RunJob(duplicates.Job, os.Args[1:],
		func(ctx context.Context, app *bootstrap.App, opts batch.Options) (interface{}, bool, error) {
			report, err := app.Duplicates.Run(ctx, opts)
			if report == nil {
				return nil, false, err
			}
			return report, report.HasErrors(), err
		}))
}
