package miner

import (
	"github.com/fbslo/frooties-contract/pkg/metrics"
)

const namespace = "miner"

var (
	blocksMined = metrics.NewCounter(
		"blocks",
		namespace,
		"number of mined blocks",
		[]string{},
	).WithLabelValues()

	txsMined = metrics.NewCounter(
		"transactions",
		namespace,
		"number of mined transactions by receipt status",
		[]string{"status"},
	)
	txsSucceeded = txsMined.WithLabelValues("success")
	txsReverted  = txsMined.WithLabelValues("reverted")

	txsDropped = metrics.NewCounter(
		"dropped_transactions",
		namespace,
		"number of pending transactions that could not be included",
		[]string{},
	).WithLabelValues()

	chainHeight = metrics.NewGauge(
		"height",
		namespace,
		"number of the latest block",
		[]string{},
	).WithLabelValues()
)
