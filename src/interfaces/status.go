package interfaces

import "stock-chatbot/src/models"

// -----------------------------------------------------------------------------
// IStatusSource reports registry sizes for the HTTP and gRPC control surfaces.
// -----------------------------------------------------------------------------

type IStatusSource interface {
	Status() models.MRegistryStatus
}
