package metering

import (
	"go.uber.org/zap"

	"armor-exposure/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}
