package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:authcore_subscriptions"`

	ID          string          `grove:"id,pk"`
	Subscriber  string          `grove:"subscriber"`
	Provider    string          `grove:"provider"`
	Status      string          `grove:"status"`
	Terms       json.RawMessage `grove:"terms,type:jsonb"`
	StartAt     *time.Time      `grove:"start_at"`
	EndAt       *time.Time      `grove:"end_at"`
	SignedAt    *time.Time      `grove:"signed_at"`
	ActivatedAt *time.Time      `grove:"activated_at"`
	CancelledAt *time.Time      `grove:"cancelled_at"`
	ExpiredAt   *time.Time      `grove:"expired_at"`
	LastPaidAt  *time.Time      `grove:"last_paid_at"`
	History     json.RawMessage `grove:"history,type:jsonb"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	terms, _ := json.Marshal(s.Terms)     //nolint:errcheck // marshals own types
	history, _ := json.Marshal(s.History) //nolint:errcheck // marshals own types

	return &subscriptionModel{
		ID:          s.ID.String(),
		Subscriber:  s.Subscriber,
		Provider:    s.Provider,
		Status:      string(s.Status),
		Terms:       terms,
		StartAt:     s.StartAt,
		EndAt:       s.EndAt,
		SignedAt:    s.SignedAt,
		ActivatedAt: s.ActivatedAt,
		CancelledAt: s.CancelledAt,
		ExpiredAt:   s.ExpiredAt,
		LastPaidAt:  s.LastPaidAt,
		History:     history,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	var terms subscription.Terms
	if len(m.Terms) > 0 {
		if err := json.Unmarshal(m.Terms, &terms); err != nil {
			return nil, err
		}
	}

	var history []subscription.Modification
	if len(m.History) > 0 && string(m.History) != "null" {
		if err := json.Unmarshal(m.History, &history); err != nil {
			return nil, err
		}
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          subID,
		Subscriber:  m.Subscriber,
		Provider:    m.Provider,
		Status:      subscription.Status(m.Status),
		Terms:       terms,
		StartAt:     m.StartAt,
		EndAt:       m.EndAt,
		SignedAt:    m.SignedAt,
		ActivatedAt: m.ActivatedAt,
		CancelledAt: m.CancelledAt,
		ExpiredAt:   m.ExpiredAt,
		LastPaidAt:  m.LastPaidAt,
		History:     history,
	}, nil
}

// ==================== Payment request models ====================

type requestModel struct {
	grove.BaseModel `grove:"table:authcore_requests"`

	ID          string          `grove:"id,pk"`
	FromPeer    string          `grove:"from_peer"`
	ToPeer      string          `grove:"to_peer"`
	Amount      json.RawMessage `grove:"amount,type:jsonb"`
	MethodID    string          `grove:"method_id"`
	Description string          `grove:"description"`
	ExpiresAt   *time.Time      `grove:"expires_at"`
	Status      string          `grove:"status"`
	Reason      string          `grove:"reason"`
	DecidedAt   *time.Time      `grove:"decided_at"`
	PaidAt      *time.Time      `grove:"paid_at"`
	ProofRef    string          `grove:"proof_ref"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toRequestModel(r *request.PaymentRequest) *requestModel {
	amount, _ := json.Marshal(r.Amount) //nolint:errcheck // marshals own types

	return &requestModel{
		ID:          r.ID.String(),
		FromPeer:    r.From,
		ToPeer:      r.To,
		Amount:      amount,
		MethodID:    r.MethodID,
		Description: r.Description,
		ExpiresAt:   r.ExpiresAt,
		Status:      string(r.Status),
		Reason:      r.Reason,
		DecidedAt:   r.DecidedAt,
		PaidAt:      r.PaidAt,
		ProofRef:    r.ProofRef,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func fromRequestModel(m *requestModel) (*request.PaymentRequest, error) {
	reqID, err := id.ParseRequestID(m.ID)
	if err != nil {
		return nil, err
	}

	var amount types.Amount
	if len(m.Amount) > 0 {
		if err := json.Unmarshal(m.Amount, &amount); err != nil {
			return nil, err
		}
	}

	return &request.PaymentRequest{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          reqID,
		From:        m.FromPeer,
		To:          m.ToPeer,
		Amount:      amount,
		MethodID:    m.MethodID,
		Description: m.Description,
		ExpiresAt:   m.ExpiresAt,
		Status:      request.Status(m.Status),
		Reason:      m.Reason,
		DecidedAt:   m.DecidedAt,
		PaidAt:      m.PaidAt,
		ProofRef:    m.ProofRef,
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:authcore_receipts"`

	ID             string          `grove:"id,pk"`
	RequestID      string          `grove:"request_id"`
	SubscriptionID string          `grove:"subscription_id"`
	Payer          string          `grove:"payer"`
	Payee          string          `grove:"payee"`
	Amount         json.RawMessage `grove:"amount,type:jsonb"`
	MethodID       string          `grove:"method_id"`
	ProofRef       string          `grove:"proof_ref"`
	PaidAt         time.Time       `grove:"paid_at"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toReceiptModel(rc *request.Receipt) *receiptModel {
	amount, _ := json.Marshal(rc.Amount) //nolint:errcheck // marshals own types

	m := &receiptModel{
		ID:        rc.ID.String(),
		RequestID: rc.RequestID.String(),
		Payer:     rc.Payer,
		Payee:     rc.Payee,
		Amount:    amount,
		MethodID:  rc.MethodID,
		ProofRef:  rc.ProofRef,
		PaidAt:    rc.PaidAt,
		CreatedAt: rc.CreatedAt,
		UpdatedAt: rc.UpdatedAt,
	}
	if rc.SubscriptionID != nil {
		m.SubscriptionID = rc.SubscriptionID.String()
	}
	return m
}

func fromReceiptModel(m *receiptModel) (*request.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, err
	}

	var amount types.Amount
	if len(m.Amount) > 0 {
		if err := json.Unmarshal(m.Amount, &amount); err != nil {
			return nil, err
		}
	}

	rc := &request.Receipt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       receiptID,
		Payer:    m.Payer,
		Payee:    m.Payee,
		Amount:   amount,
		MethodID: m.MethodID,
		ProofRef: m.ProofRef,
		PaidAt:   m.PaidAt,
	}
	if m.RequestID != "" {
		reqID, err := id.ParseRequestID(m.RequestID)
		if err != nil {
			return nil, err
		}
		rc.RequestID = reqID
	}
	if m.SubscriptionID != "" {
		subID, err := id.ParseSubscriptionID(m.SubscriptionID)
		if err != nil {
			return nil, err
		}
		rc.SubscriptionID = &subID
	}
	return rc, nil
}

// ==================== Auto-pay rule models ====================

type ruleModel struct {
	grove.BaseModel `grove:"table:authcore_autopay_rules"`

	ID                  string          `grove:"id,pk"`
	Name                string          `grove:"name"`
	Enabled             bool            `grove:"enabled"`
	MaxAmount           json.RawMessage `grove:"max_amount,type:jsonb"`
	AllowedMethods      json.RawMessage `grove:"allowed_methods,type:jsonb"`
	AllowedPeers        json.RawMessage `grove:"allowed_peers,type:jsonb"`
	RequireConfirmation bool            `grove:"require_confirmation"`
	Priority            int             `grove:"priority"`
	CreatedAt           time.Time       `grove:"created_at"`
	UpdatedAt           time.Time       `grove:"updated_at"`
}

func toRuleModel(r *autopay.Rule) *ruleModel {
	maxAmount, _ := json.Marshal(r.MaxAmount)    //nolint:errcheck // marshals own types
	methods, _ := json.Marshal(r.AllowedMethods) //nolint:errcheck // marshals own types
	peers, _ := json.Marshal(r.AllowedPeers)     //nolint:errcheck // marshals own types

	return &ruleModel{
		ID:                  r.ID.String(),
		Name:                r.Name,
		Enabled:             r.Enabled,
		MaxAmount:           maxAmount,
		AllowedMethods:      methods,
		AllowedPeers:        peers,
		RequireConfirmation: r.RequireConfirmation,
		Priority:            r.Priority,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func fromRuleModel(m *ruleModel) (*autopay.Rule, error) {
	ruleID, err := id.ParseRuleID(m.ID)
	if err != nil {
		return nil, err
	}

	var maxAmount *types.Amount
	if len(m.MaxAmount) > 0 && string(m.MaxAmount) != "null" {
		maxAmount = new(types.Amount)
		if err := json.Unmarshal(m.MaxAmount, maxAmount); err != nil {
			return nil, err
		}
	}

	var methods, peers []string
	if len(m.AllowedMethods) > 0 && string(m.AllowedMethods) != "null" {
		if err := json.Unmarshal(m.AllowedMethods, &methods); err != nil {
			return nil, err
		}
	}
	if len(m.AllowedPeers) > 0 && string(m.AllowedPeers) != "null" {
		if err := json.Unmarshal(m.AllowedPeers, &peers); err != nil {
			return nil, err
		}
	}

	return &autopay.Rule{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                  ruleID,
		Name:                m.Name,
		Enabled:             m.Enabled,
		MaxAmount:           maxAmount,
		AllowedMethods:      methods,
		AllowedPeers:        peers,
		RequireConfirmation: m.RequireConfirmation,
		Priority:            m.Priority,
	}, nil
}

// ==================== Settings models ====================

type settingModel struct {
	grove.BaseModel `grove:"table:authcore_settings"`

	Key       string    `grove:"key,pk"`
	Value     string    `grove:"value"`
	UpdatedAt time.Time `grove:"updated_at"`
}

const settingAutoPayEnabled = "autopay_enabled"
