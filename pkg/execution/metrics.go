package execution

import (
	"github.com/fbslo/frooties-contract/pkg/metrics"
)

const namespace = "execution"

var (
	callCounter = metrics.NewCounter(
		"calls",
		namespace,
		"number of native contract calls by method and outcome",
		[]string{"method", "status"},
	)

	revertCounter = metrics.NewCounter(
		"reverts",
		namespace,
		"number of reverted native contract calls by reason",
		[]string{"reason"},
	)

	deployCounter = metrics.NewCounter(
		"deployments",
		namespace,
		"number of deployed native contracts",
		[]string{},
	).WithLabelValues()
)
