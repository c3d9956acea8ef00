package database

import "papertrader/src/datamodels"

var DbTables = []interface{}{
	&datamodels.ArchivedTrade{},
	&datamodels.ArchivedDecision{},
	&datamodels.Metric{},
}
