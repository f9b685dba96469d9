package strategy

import (
	"github.com/rs/zerolog/log"

	"corrcrack/market/common"
)

// Notifier receives signals the engine emits. Delivery (chat, queue, webhook)
// belongs to the host; the engine only hands over.
type Notifier interface {
	Notify(signal common.Signal)
}

// LogNotifier is the default Notifier: it logs the signal and drops it.
type LogNotifier struct{}

// Notify logs the signal at info level.
func (LogNotifier) Notify(signal common.Signal) {
	log.Info().
		Str("trigger", signal.TriggerAsset).
		Str("direction", string(signal.Direction)).
		Strs("held", signal.CorrelatedAssets).
		Float64("referenceLevel", float64(signal.ReferenceLevel)).
		Float64("confidence", float64(signal.Confidence)).
		Msg("Correlation crack signal")
}
