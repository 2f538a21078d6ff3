package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every service's HTTP handler; pkg/app mounts them on one router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
