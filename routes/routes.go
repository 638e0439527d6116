package routes

import (
	"smartbite-api/handlers"
	"smartbite-api/middleware"
	"smartbite-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, api *handlers.API) {
	authRequired := middleware.AuthRequired(api.Identity)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/register", api.Register)
		public.POST("/auth/login", api.Login)
		public.GET("/auth/check-admin", api.CheckAdmin)

		public.GET("/restaurants", api.ListRestaurants)
		public.GET("/restaurants/:id", api.GetRestaurant)
		public.GET("/restaurants/:id/menu", api.GetMenu)

		public.GET("/state-machine", api.GetStateMachineInfo)

		// Gateway callback, unauthenticated
		public.POST("/payments/webhook", api.PaymentWebhook)

		// Token travels in the query string
		public.GET("/ws", api.Events)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(authRequired)
	{
		auth.GET("/auth/verify", api.Verify)
		auth.GET("/profile", api.GetProfile)
		auth.GET("/orders/:id", api.GetOrderDetail)
		auth.GET("/orders/:id/track", api.TrackOrder)
	}

	// ── Orders ─────────────────────────────────────────────────────
	customer := r.Group("/api")
	customer.Use(authRequired, middleware.RoleRequired(models.RoleCustomer))
	{
		customer.POST("/orders", api.PlaceOrder)
		customer.GET("/orders/customer", api.GetMyOrders)

		customer.POST("/payments/initiate", api.InitiatePayment)
		customer.GET("/payments/status/:orderId", api.GetPaymentStatus)
		customer.GET("/payments/history", api.GetPaymentHistory)
	}

	status := r.Group("/api")
	status.Use(authRequired, middleware.RoleRequired(models.RoleOwner, models.RoleAgent, models.RoleAdmin))
	{
		status.PUT("/orders/:id/status", api.UpdateOrderStatus)
	}

	agent := r.Group("/api")
	agent.Use(authRequired, middleware.RoleRequired(models.RoleAgent))
	{
		agent.GET("/orders/agent", api.GetMyDeliveries)
		agent.GET("/orders/available-deliveries", api.GetAvailableDeliveries)
		agent.PUT("/orders/:id/accept-delivery", api.AcceptDelivery)
		agent.POST("/orders/:id/location", api.RecordLocation)
	}

	// ── Restaurant owner routes ────────────────────────────────────
	restaurant := r.Group("/api/restaurant")
	restaurant.Use(authRequired, middleware.RoleRequired(models.RoleOwner))
	{
		restaurant.POST("", api.CreateRestaurant)
		restaurant.GET("", api.GetMyRestaurant)
		restaurant.PUT("", api.UpdateRestaurant)

		restaurant.POST("/menu", api.AddMenuItem)
		restaurant.PUT("/menu/:itemId", api.UpdateMenuItem)
		restaurant.DELETE("/menu/:itemId", api.DeleteMenuItem)

		restaurant.GET("/orders", api.GetRestaurantOrders)
	}
	r.GET("/api/orders/restaurant", authRequired, middleware.RoleRequired(models.RoleOwner), api.GetRestaurantOrders)

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(authRequired, middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/orders", api.AdminGetAllOrders)
		admin.GET("/users", api.AdminGetAllUsers)
		admin.GET("/restaurants", api.AdminGetAllRestaurants)
		admin.PUT("/restaurants/:id/active", api.AdminSetRestaurantActive)
	}
}
