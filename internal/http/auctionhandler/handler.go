package auctionhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/engine"
)

type Handler struct {
	eng engine.IAuctionEngine
}

func New(eng engine.IAuctionEngine) *Handler { return &Handler{eng: eng} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auctions", h.list)
	r.POST("/auctions", h.create)
	r.GET("/auctions/:id", h.view)
	r.POST("/auctions/:id/bid", h.bid)
}

// @Summary		Create an auction
// @Description	Seller creates a FORWARD or DUTCH auction as one atomic write.
// @Tags			Auctions
// @Param			body	body		CreateAuctionBody	true	"Auction parameters"
// @Success		201		{object}	auction.Record
// @Failure		400		{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateAuctionBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	rec, err := h.eng.CreateAuction(ginCtx.Request.Context(), auction.NewRecordParams{
		ID:               uuid.NewString(),
		SellerID:         body.SellerID,
		Item:             body.Item,
		Type:             auction.Type(body.AuctionType),
		StartingPrice:    body.StartingPrice,
		MinPrice:         body.MinPrice,
		DecreaseAmount:   body.DecreaseAmount,
		DecreaseInterval: body.DecreaseIntervalSeconds,
		EndsAt:           body.EndsAt.UTC(),
	})
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, rec)
}

// @Summary		Get auction snapshot
// @Description	Read-only view with lazy expiry: an open auction past its end time is reported closed.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	engine.View
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) view(ginCtx *gin.Context) {
	v, err := h.eng.GetAuctionView(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, v)
}

// @Summary		List auctions
// @Description	Paginated auction snapshots, optionally filtered by status.
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"			Enums(OPEN,CLOSED)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		engine.View
// @Failure		400		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(ginCtx *gin.Context) {
	var q ListAuctionsQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.eng.ListAuctions(ginCtx.Request.Context(), auction.Status(q.Status), q.Limit, q.Offset)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Place a bid
// @Description	FORWARD: amount must strictly exceed the current price. DUTCH: buy-now at the decayed price, amount ignored.
// @Tags			Auctions
// @Param			id		path		string			true	"Auction ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		200		{object}	BidOutcomeResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions/{id}/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.eng.PlaceBid(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.BidderID, body.Amount)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, BidOutcomeResponse{
		AuctionID: out.AuctionID,
		Result:    string(out.Result),
		Price:     out.Price,
	})
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
// Business rejections are terminal; only conflict/unavailable carry the
// retryable hint.
func writeError(ginCtx *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		ginCtx.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrInvalidAmount), errors.Is(err, auction.ErrInvalidParams):
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, auction.ErrAuctionExpired):
		ginCtx.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrConflict):
		ginCtx.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, auction.ErrStoreUnavailable):
		ginCtx.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Retryable: true})
	default:
		ginCtx.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
