package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

const (
	eventChargeComplete = "charge.complete"

	chargeSuccessful = "successful"
	chargeFailed     = "failed"
	chargeExpired    = "expired"

	metadataIdempotencyKey = "idempotency_key"
	refundListLimit        = 100
)

var sourceTypes = map[model.PaymentMethod]string{
	model.MethodAlipay:    "alipay",
	model.MethodWeChatPay: "wechat_pay",
}

type OmiseGateway struct {
	client    *omise.Client
	publicKey string
	log       *logger.Logger
}

func NewOmiseGateway(publicKey, secretKey string, log *logger.Logger) (*OmiseGateway, error) {
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	client.SetDebug(false)
	return &OmiseGateway{client: client, publicKey: publicKey, log: log}, nil
}

func (g *OmiseGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	op := &operations.CreateCharge{
		Amount:      toGatewayUnits(req.Amount, req.Currency),
		Currency:    strings.ToLower(req.Currency),
		ReturnURI:   req.ReturnURI,
		Description: "Court booking " + req.Reference,
		Metadata:    chargeMetadata(req),
	}

	switch {
	case req.Method == model.MethodCreditCard:
		if req.Token == "" {
			return nil, ErrTokenRequired
		}
		op.Card = req.Token
	case req.Token != "":
		op.Source = req.Token
	default:
		sourceType, ok := sourceTypes[req.Method]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Method)
		}
		source, err := call(ctx, func() (*omise.Source, error) {
			src := &omise.Source{}
			err := g.client.Do(src, &operations.CreateSource{
				Type:     sourceType,
				Amount:   toGatewayUnits(req.Amount, req.Currency),
				Currency: strings.ToLower(req.Currency),
			})
			return src, err
		})
		if err != nil {
			return nil, fmt.Errorf("create %s source: %w", sourceType, err)
		}
		op.Source = source.ID
	}

	charge, err := call(ctx, func() (*omise.Charge, error) {
		ch := &omise.Charge{}
		return ch, g.client.Do(ch, op)
	})
	if err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	if string(charge.Status) == chargeFailed {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, failureReason(charge))
	}

	g.log.Info("Gateway order created",
		"reference", req.Reference,
		"charge_id", charge.ID,
		"status", charge.Status,
		"method", req.Method,
	)

	params := map[string]string{
		"charge_id":  charge.ID,
		"public_key": g.publicKey,
	}
	if charge.AuthorizeURI != "" {
		params["authorize_uri"] = charge.AuthorizeURI
	}
	return &Order{OrderToken: charge.ID, RedirectParams: params}, nil
}

func chargeMetadata(req OrderRequest) map[string]interface{} {
	metadata := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata[MetadataReference] = req.Reference
	return metadata
}

// Refund looks for a refund already created with the same idempotency key before
// creating one, so a retried request does not refund the charge twice.
func (g *OmiseGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.IdempotencyKey != "" {
		existing, err := g.findRefund(ctx, req.OrderReference, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			g.log.Info("Gateway refund already exists",
				"charge_id", req.OrderReference,
				"refund_id", existing.ID,
				"idempotency_key", req.IdempotencyKey,
			)
			return &RefundResult{RefundID: existing.ID, Status: refundStatus(existing)}, nil
		}
	}

	refund, err := call(ctx, func() (*omise.Refund, error) {
		rf := &omise.Refund{}
		return rf, g.client.Do(rf, &operations.CreateRefund{
			ChargeID: req.OrderReference,
			Amount:   toGatewayUnits(req.Amount, req.Currency),
			Metadata: refundMetadata(req),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	g.log.Info("Gateway refund created",
		"charge_id", req.OrderReference,
		"refund_id", refund.ID,
		"amount", req.Amount.String(),
		"currency", req.Currency,
	)
	return &RefundResult{RefundID: refund.ID, Status: refundStatus(refund)}, nil
}

func (g *OmiseGateway) findRefund(ctx context.Context, chargeID, key string) (*omise.Refund, error) {
	refunds, err := call(ctx, func() (*omise.RefundList, error) {
		list := &omise.RefundList{}
		return list, g.client.Do(list, &operations.ListRefunds{
			ChargeID: chargeID,
			List:     operations.List{Limit: refundListLimit, Order: omise.ReverseChronological},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	return findByKey(refunds.Data, key), nil
}

func findByKey(refunds []*omise.Refund, key string) *omise.Refund {
	for _, rf := range refunds {
		if rf == nil {
			continue
		}
		if k, _ := rf.Metadata[metadataIdempotencyKey].(string); k == key {
			return rf
		}
	}
	return nil
}

func refundMetadata(req RefundRequest) map[string]interface{} {
	metadata := map[string]interface{}{"reason": req.Reason}
	if req.IdempotencyKey != "" {
		metadata[metadataIdempotencyKey] = req.IdempotencyKey
	}
	return metadata
}

// refundStatus reports a refund the gateway has not closed yet as submitted.
func refundStatus(rf *omise.Refund) string {
	switch rf.Status {
	case "", "pending":
		return "submitted"
	}
	return rf.Status
}

// VerifyEvent re-fetches the event by id so only events the gateway really emitted count.
func (g *OmiseGateway) VerifyEvent(ctx context.Context, eventID string) (*VerifiedEvent, error) {
	if eventID == "" {
		return nil, ErrEventUnverified
	}

	event, err := call(ctx, func() (*omise.Event, error) {
		ev := &omise.Event{}
		return ev, g.client.Do(ev, &operations.RetrieveEvent{EventID: eventID})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventUnverified, err)
	}

	verified := &VerifiedEvent{EventID: event.ID, Kind: event.Key}
	if event.Key != eventChargeComplete {
		return verified, nil
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: encode event data: %v", ErrEventUnverified, err)
	}
	var charge omise.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("%w: decode charge: %v", ErrEventUnverified, err)
	}

	reference, _ := charge.Metadata[MetadataReference].(string)
	if reference == "" {
		return nil, ErrMissingReference
	}

	verified.Reference = reference
	verified.OrderReference = charge.ID
	verified.TransactionID = charge.ID
	verified.Amount = fromGatewayUnits(charge.Amount, charge.Currency)

	switch string(charge.Status) {
	case chargeSuccessful:
		verified.Final = true
		verified.Success = true
	case chargeFailed, chargeExpired:
		verified.Final = true
		verified.FailureReason = failureReason(&charge)
	}
	return verified, nil
}

func failureReason(ch *omise.Charge) string {
	switch {
	case ch.FailureMessage != nil && *ch.FailureMessage != "":
		return *ch.FailureMessage
	case ch.FailureCode != nil && *ch.FailureCode != "":
		return *ch.FailureCode
	default:
		return string(ch.Status)
	}
}
