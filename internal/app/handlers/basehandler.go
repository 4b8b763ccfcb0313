package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/cache"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/events"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/gateway"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

// Deps carries everything the handlers need; the frontend lives on a
// separate origin, hence CORS.
type Deps struct {
	Repo          storage.Repository
	SecretKey     string
	Gateways      map[string]gateway.Gateway
	Events        events.Publisher
	Listings      *cache.ListingCache
	CORSOrigins   []string
	FeaturedPrice int64
	FeaturedDays  int
}

type BaseHandler struct {
	*chi.Mux
	secretKey     string
	repo          storage.Repository
	gateways      map[string]gateway.Gateway
	events        events.Publisher
	listings      *cache.ListingCache
	featuredPrice int64
	featuredDays  int
}

func NewBaseHandler(deps Deps) *BaseHandler {
	if deps.Events == nil {
		// nil *Producer drops events, so the publisher is always callable
		deps.Events = (*events.Producer)(nil)
	}
	bh := &BaseHandler{
		Mux:           chi.NewMux(),
		secretKey:     deps.SecretKey,
		repo:          deps.Repo,
		gateways:      deps.Gateways,
		events:        deps.Events,
		listings:      deps.Listings,
		featuredPrice: deps.FeaturedPrice,
		featuredDays:  deps.FeaturedDays,
	}

	bh.Use(middleware.RequestID)
	bh.Use(middleware.RealIP)
	bh.Use(middleware.Logger)
	bh.Use(middleware.Recoverer)

	bh.Use(middleware.Compress(5))
	bh.Use(gzipHandle)

	if len(deps.CORSOrigins) > 0 {
		bh.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	bh.Route("/api", func(r chi.Router) {
		r.Post("/user/register", bh.register())
		r.Post("/user/login", bh.login())

		r.Get("/categories", bh.getCategories())
		r.Get("/resources", bh.listResources())
		r.Get("/resources/{slug}", bh.getResource())

		r.Group(func(r chi.Router) {
			r.Use(authHandle(bh.secretKey))

			r.Post("/resources", bh.submitResource())
			r.Post("/resources/{slug}/checkout", bh.checkout())
			r.Post("/resources/{slug}/feature/checkout", bh.featureCheckout())
			r.Post("/resources/{slug}/feature/confirm", bh.confirmFeatured())
			r.Post("/payments/confirm", bh.confirmPayment())

			r.Route("/creator", func(r chi.Router) {
				r.Get("/earnings", bh.getEarnings())
				r.Get("/purchases", bh.getCreatorPurchases())
				r.Get("/payouts", bh.getPayoutRequests())
				r.Post("/payouts", bh.createPayoutRequest())
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminHandle(bh.repo))
				r.Get("/payouts", bh.adminListPayouts())
				r.Get("/payouts/export", bh.adminExportPayouts())
				r.Post("/payouts/{id}/approve", bh.adminApprovePayout())
				r.Post("/payouts/{id}/reject", bh.adminRejectPayout())
			})
		})
	})

	return bh
}
