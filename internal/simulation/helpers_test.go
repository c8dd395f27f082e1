package simulation_test

import (
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/metrics"
)

func totalDims() metrics.Dimensions { return metrics.Total }

func regionDims(region string) metrics.Dimensions {
	all := constants.AllDimension
	return metrics.Dimensions{Region: region, Cohort: all, AgeBracket: all, Segment: all}
}
