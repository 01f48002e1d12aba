package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/example/mostrador/internal/apperrors"
	"github.com/example/mostrador/internal/config"
	"github.com/example/mostrador/internal/document"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/middleware"
	"github.com/example/mostrador/internal/models"
	"github.com/example/mostrador/internal/pricing"
	"github.com/example/mostrador/internal/services"
	"github.com/example/mostrador/internal/session"
	"github.com/example/mostrador/internal/utils"
)

// POSHandler owns the order composition endpoints: the per-user session,
// pricing totals, and document submission to the ERP.
type POSHandler struct {
	submissions services.SubmissionLog
	erp         *erp.Client
	store       session.Store
	cfg         *config.Config
	telegram    *services.TelegramService
	resync      *services.ResyncService
	validate    *validator.Validate
	log         zerolog.Logger
}

// NewPOSHandler constructs a POSHandler.
func NewPOSHandler(
	submissions services.SubmissionLog,
	erpClient *erp.Client,
	store session.Store,
	cfg *config.Config,
	telegram *services.TelegramService,
	resync *services.ResyncService,
	log zerolog.Logger,
) *POSHandler {
	return &POSHandler{
		submissions: submissions,
		erp:         erpClient,
		store:       store,
		cfg:         cfg,
		telegram:    telegram,
		resync:      resync,
		validate:    validator.New(),
		log:         log.With().Str("handler", "pos").Logger(),
	}
}

func (h *POSHandler) owner(c *fiber.Ctx) (string, error) {
	username, ok := middleware.GetCurrentUsername(c)
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing user identity")
	}
	return username, nil
}

func (h *POSHandler) loadOrNew(ctx context.Context, owner string) (*session.Session, error) {
	sess, err := h.store.Load(ctx, owner)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.New(), nil
		}
		return nil, err
	}
	return sess, nil
}

// pricingContext fetches the active event and the wholesale threshold in one
// shot, so totals are always resolved from a consistent pair of inputs.
func (h *POSHandler) pricingContext(ctx context.Context, sess *session.Session) (pricing.Context, error) {
	var (
		event     *models.PromoEvent
		threshold float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := h.erp.ActivePromoEvent(gctx)
		if err != nil {
			return err
		}
		event = fetched
		return nil
	})
	g.Go(func() error {
		param, err := h.erp.GetParameter(gctx, h.cfg.WholesaleThresholdCode)
		if err != nil {
			return err
		}
		if param != nil {
			threshold = param.Value
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return pricing.Context{}, err
	}

	return pricing.Context{
		PriceType:             pricing.PriceType(sess.PriceType),
		ManualDiscountPercent: sess.ManualDiscountPercent,
		Event:                 event,
		WholesaleThreshold:    threshold,
		LoadedHeaderDiscount:  sess.LoadedHeaderDiscount,
	}, nil
}

func totalsPayload(t pricing.Totals) fiber.Map {
	return fiber.Map{
		"wholesale_total":        t.WholesaleTotal.Round(2).InexactFloat64(),
		"retail_total":           t.RetailTotal.Round(2).InexactFloat64(),
		"total_value":            t.TotalValue.Round(2).InexactFloat64(),
		"manual_discount_amount": t.ManualDiscountAmount.Round(2).InexactFloat64(),
		"event_discount_percent": t.EventDiscountPercent.InexactFloat64(),
		"event_discount_amount":  t.EventDiscountAmount.Round(2).InexactFloat64(),
		"grand_total":            t.GrandTotal.Round(2).InexactFloat64(),
		"effective_price_type":   string(t.EffectivePriceType),
		"price_type_locked":      t.PriceTypeLocked,
		"event_eligible":         t.EventEligible,
	}
}

func (h *POSHandler) respondSession(c *fiber.Ctx, sess *session.Session, extra fiber.Map) error {
	pctx, err := h.pricingContext(c.Context(), sess)
	if err != nil {
		h.log.Error().Err(err).Msg("pricing inputs fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "pricing inputs are unavailable")
	}
	totals := pricing.Resolve(sess.Lines, pctx)

	payload := fiber.Map{
		"success": true,
		"session": sess,
		"totals":  totalsPayload(totals),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return c.JSON(payload)
}

// GetSession returns the owner's current order with resolved totals.
func (h *POSHandler) GetSession(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}
	return h.respondSession(c, sess, nil)
}

type addLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// AddLine adds a catalog product to the order or bumps its quantity.
func (h *POSHandler) AddLine(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req addLineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	product, err := h.erp.GetProduct(c.Context(), req.ProductID)
	if err != nil {
		h.log.Error().Err(err).Str("product", req.ProductID).Msg("product fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "catalog is unavailable")
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}

	outcome := sess.AddLine(*product)
	if outcome == session.OutcomeAdded || outcome == session.OutcomeIncremented {
		if err := h.store.Save(c.Context(), owner, sess); err != nil {
			return err
		}
	}

	return h.respondSession(c, sess, fiber.Map{"outcome": outcome})
}

// DecrementLine lowers a line's quantity, removing it at zero.
func (h *POSHandler) DecrementLine(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	productID := c.Params("productId")
	if productID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "product id is required")
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}

	outcome := sess.DecrementLine(productID)
	if outcome == session.OutcomeDecremented || outcome == session.OutcomeRemoved {
		if err := h.store.Save(c.Context(), owner, sess); err != nil {
			return err
		}
	}

	return h.respondSession(c, sess, fiber.Map{"outcome": outcome})
}

// Reset empties the order while keeping the selected client.
func (h *POSHandler) Reset(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}

	sess.Reset()
	if err := h.store.Save(c.Context(), owner, sess); err != nil {
		return err
	}
	return h.respondSession(c, sess, nil)
}

type setClientRequest struct {
	ID      string `json:"nit_sec" validate:"required"`
	TaxID   string `json:"nit_ide"`
	Name    string `json:"nit_nom" validate:"required"`
	Phone   string `json:"nit_tel"`
	Address string `json:"nit_dir"`
}

// SetClient attaches a counterpart to the order.
func (h *POSHandler) SetClient(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req setClientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}

	sess.Client = &models.Client{
		ID:      req.ID,
		TaxID:   req.TaxID,
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := h.store.Save(c.Context(), owner, sess); err != nil {
		return err
	}
	return h.respondSession(c, sess, nil)
}

type setPricingRequest struct {
	PriceType             *string  `json:"price_type" validate:"omitempty,oneof=retail wholesale"`
	ManualDiscountPercent *float64 `json:"manual_discount_percent" validate:"omitempty,gte=0,lte=100"`
}

// SetPricing updates the price type selection and the manual discount. When a
// wholesale threshold is configured the selection is overridden during totals
// resolution; the stored choice is still kept for when the lock lifts.
func (h *POSHandler) SetPricing(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req setPricingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}

	if req.PriceType != nil {
		sess.PriceType = *req.PriceType
	}
	if req.ManualDiscountPercent != nil {
		sess.ManualDiscountPercent = *req.ManualDiscountPercent
	}
	if err := h.store.Save(c.Context(), owner, sess); err != nil {
		return err
	}
	return h.respondSession(c, sess, nil)
}

type submitRequest struct {
	DocumentType string `json:"document_type" validate:"required,oneof=COT VTA"`
}

// Submit pushes the order to the ERP as a quote or invoice. A per-owner lock
// rejects overlapping submissions; the session is deleted only after the ERP
// accepts the document.
func (h *POSHandler) Submit(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	sess, err := h.loadOrNew(c.Context(), owner)
	if err != nil {
		return err
	}
	if sess.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "order is empty")
	}
	if sess.Client == nil {
		return fiber.NewError(fiber.StatusBadRequest, "no client selected")
	}

	acquired, err := h.store.AcquireSubmitLock(c.Context(), owner, h.cfg.SubmitLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return fiber.NewError(fiber.StatusConflict, "a submission is already in progress")
	}
	defer func() {
		if err := h.store.ReleaseSubmitLock(context.Background(), owner); err != nil {
			h.log.Warn().Err(err).Str("owner", owner).Msg("failed to release submit lock")
		}
	}()

	pctx, err := h.pricingContext(c.Context(), sess)
	if err != nil {
		h.log.Error().Err(err).Msg("pricing inputs fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "pricing inputs are unavailable")
	}
	totals := pricing.Resolve(sess.Lines, pctx)

	doc, err := document.Build(document.Input{
		Session:  sess,
		Totals:   totals,
		DocType:  req.DocumentType,
		Username: owner,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	editing := sess.EditingDocumentID != ""
	record := models.SubmissionRecord{
		Username:       owner,
		DocumentType:   req.DocumentType,
		ClientID:       sess.Client.ID,
		LineCount:      len(sess.Lines),
		GrandTotal:     totals.GrandTotal.Round(2).InexactFloat64(),
		PriceListCode:  doc.Header.PriceListCode,
		SubmittedAt:    time.Now(),
		EditedDocument: sess.EditingDocumentID,
	}

	var (
		documentID string
		number     string
	)
	if editing {
		if req.DocumentType == models.DocumentTypeInvoice {
			doc, err = document.MergeOriginRefs(c.Context(), h.erp, sess.EditingDocumentID, doc)
			if err != nil {
				h.log.Error().Err(err).Str("document", sess.EditingDocumentID).Msg("origin ref merge failed")
				return apperrors.Wrap(apperrors.CodeDependency, err, "could not load the document being edited")
			}
		}
		err = h.erp.UpdateDocument(c.Context(), sess.EditingDocumentID, doc)
		documentID = sess.EditingDocumentID
	} else {
		var result *erp.CreateDocumentResult
		result, err = h.erp.CreateDocument(c.Context(), doc)
		if result != nil {
			documentID = result.DocumentID
			number = result.Number
		}
	}

	if err != nil {
		record.SyncError = err.Error()
		if logErr := h.submissions.Record(c.Context(), &record); logErr != nil {
			h.log.Error().Err(logErr).Msg("failed to record submission failure")
		}
		h.log.Error().Err(err).Str("type", req.DocumentType).Msg("document submission failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "the ERP rejected the document")
	}

	record.ERPDocumentID = documentID
	if err := h.submissions.Record(c.Context(), &record); err != nil {
		h.log.Error().Err(err).Msg("failed to record submission")
	}

	if err := h.store.Delete(c.Context(), owner); err != nil {
		h.log.Warn().Err(err).Str("owner", owner).Msg("failed to clear session after submit")
	}

	go h.notifySubmission(record, sess.Client.Name, editing)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"document_id":   documentID,
			"number":        number,
			"document_type": req.DocumentType,
			"edited":        editing,
		},
		"totals": totalsPayload(totals),
	})
}

func (h *POSHandler) notifySubmission(record models.SubmissionRecord, clientName string, edited bool) {
	err := h.telegram.NotifySubmission(services.SubmissionNotification{
		DocumentType: record.DocumentType,
		DocumentID:   record.ERPDocumentID,
		ClientName:   clientName,
		Username:     record.Username,
		LineCount:    record.LineCount,
		GrandTotal:   record.GrandTotal,
		Edited:       edited,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("submission notification failed")
		return
	}

	if err := h.submissions.MarkNotified(context.Background(), record.ID, time.Now()); err != nil {
		h.log.Warn().Err(err).Msg("failed to mark submission as notified")
	}
}

// LoadForEdit replaces the owner's session with the contents of a persisted
// document. Lines are re-snapshotted from the catalog so stock and offers are
// current; the header discount rides along for total continuity.
func (h *POSHandler) LoadForEdit(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	documentID := c.Params("id")
	if documentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "document id is required")
	}

	doc, err := h.erp.GetDocument(c.Context(), documentID)
	if err != nil {
		h.log.Error().Err(err).Str("document", documentID).Msg("document fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "could not load the document")
	}

	sess := session.New()
	sess.Client = doc.Client
	sess.LoadedHeaderDiscount = doc.Header.HeaderDiscount
	sess.EditingDocumentID = documentID
	sess.EditingDocType = doc.Header.Type
	if doc.Header.PriceListCode == models.PriceListWholesale {
		sess.PriceType = session.PriceTypeWholesale
	}

	for _, line := range doc.Lines {
		product, err := h.erp.GetProduct(c.Context(), line.ProductID)
		if err != nil {
			h.log.Error().Err(err).Str("product", line.ProductID).Msg("line snapshot failed")
			return apperrors.Wrap(apperrors.CodeDependency, err, "could not load the document lines")
		}
		ol := models.NewOrderLine(*product)
		ol.Quantity = line.Quantity
		sess.Lines = append(sess.Lines, ol)
	}

	if err := h.store.Save(c.Context(), owner, sess); err != nil {
		return err
	}
	return h.respondSession(c, sess, nil)
}

// RefreshLines schedules a debounced background refresh of display-only line
// fields from the catalog.
func (h *POSHandler) RefreshLines(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	h.resync.RequestRefresh(owner)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
}

// ListSubmissions lists the owner's submission history.
func (h *POSHandler) ListSubmissions(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	pagination := utils.ParsePagination(c)

	records, total, err := h.submissions.List(c.Context(), owner, pagination.Limit, pagination.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"pagination": fiber.Map{
			"page":  pagination.Page,
			"limit": pagination.Limit,
			"total": total,
		},
	})
}
