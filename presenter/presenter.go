// Package presenter exposes the tracker state over a small read-only
// HTTP API, meant for UIs and debugging.
package presenter

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/balancednetwork/xcall-tracker/entity"
	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/orchestrator"
	"github.com/balancednetwork/xcall-tracker/tracker"
)

var ErrNotFound = errors.New("not found")

type Presenter struct {
	logger       logging.Logger
	tracker      *tracker.Service
	orchestrator *orchestrator.Service
	chainNames   map[string]string
	root         chi.Router
}

func NewPresenter(logger logging.Logger, tr *tracker.Service, orch *orchestrator.Service, chainNames map[string]string) *Presenter {
	return &Presenter{
		logger:       logger,
		tracker:      tr,
		orchestrator: orch,
		chainNames:   chainNames,
		root:         chi.NewMux(),
	}
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	p.root.Use(middleware.Throttle(5))
	p.root.Use(middleware.RequestID)
	p.root.Use(NewLoggerMiddleware(p.logger))
	p.root.Use(Recoverer)
	p.root.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))
	p.root.Get("/health", p.wrapJSONHandler(p.GetHealth))
	p.root.Get("/messages/{chainID}/{txHash}", p.wrapJSONHandler(p.GetMessage))
	p.root.Get("/transfers/{chainID}/{txHash}", p.wrapJSONHandler(p.GetTransfer))
	p.root.Get("/transfers/pending", p.wrapJSONHandler(p.GetPendingTransfers))
	return http.ListenAndServe(addr, p.root)
}

func (p *Presenter) wrapJSONHandler(handler func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if errors.Is(err, ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			logging.LoggerFromContext(r.Context()).WithError(err).Error("failed to handle request")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := writeJSON(w, res); err != nil {
			logging.LoggerFromContext(r.Context()).WithError(err).Error("failed to marshal JSON result")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func (p *Presenter) GetHealth(_ *http.Request) (interface{}, error) {
	chains := make([]string, 0, len(p.chainNames))
	for chainID := range p.chainNames {
		chains = append(chains, chainID)
	}
	sort.Strings(chains)
	return &HealthInfo{Status: "ok", Chains: chains}, nil
}

func (p *Presenter) GetMessage(r *http.Request) (interface{}, error) {
	id := entity.TransactionID(chi.URLParam(r, "chainID"), chi.URLParam(r, "txHash"))
	msg, ok := p.tracker.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p.messageToInfo(msg), nil
}

func (p *Presenter) GetTransfer(r *http.Request) (interface{}, error) {
	id := entity.TransactionID(chi.URLParam(r, "chainID"), chi.URLParam(r, "txHash"))
	t, ok := p.orchestrator.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p.transferToInfo(t), nil
}

// GetPendingTransfers lists unfinished transfers for the wallets given in
// the comma-separated "wallets" query parameter of chain ids.
func (p *Presenter) GetPendingTransfers(r *http.Request) (interface{}, error) {
	var chains []string
	if wallets := r.URL.Query().Get("wallets"); wallets != "" {
		chains = strings.Split(wallets, ",")
	}
	transfers := p.orchestrator.PendingTransfers(chains)
	infos := make([]*TransferInfo, 0, len(transfers))
	for _, t := range transfers {
		infos = append(infos, p.transferToInfo(t))
	}
	return infos, nil
}

func (p *Presenter) messageToInfo(msg *entity.Message) *MessageInfo {
	return &MessageInfo{
		ID:                     msg.ID,
		SourceChainID:          msg.SourceChainID,
		DestinationChainID:     msg.DestinationChainID,
		Status:                 msg.Status,
		Description:            tracker.StatusDescription(msg, p.chainNames),
		SourceTransaction:      transactionToInfo(msg.SourceTransaction),
		DestinationTransaction: transactionToInfo(msg.DestinationTransaction),
	}
}

func (p *Presenter) transferToInfo(t *entity.Transfer) *TransferInfo {
	info := &TransferInfo{
		ID:                      t.ID,
		Type:                    t.Type,
		Status:                  t.Status,
		SourceChainID:           t.SourceChainID,
		FinalDestinationChainID: t.FinalDestinationChainID,
		Attributes:              t.Attributes,
	}
	if t.Amount != nil {
		info.Amount = t.Amount.String()
	}
	if msg, ok := p.tracker.Get(t.PrimaryMessageID); ok {
		info.PrimaryMessage = p.messageToInfo(msg)
	}
	if t.SecondaryMessageID != "" {
		if msg, ok := p.tracker.Get(t.SecondaryMessageID); ok {
			info.SecondaryMessage = p.messageToInfo(msg)
		}
	}
	return info
}

func transactionToInfo(tx *entity.Transaction) *TransactionInfo {
	if tx == nil {
		return nil
	}
	return &TransactionInfo{
		Hash:      tx.Hash,
		ChainID:   tx.ChainID,
		Status:    tx.Status,
		Timestamp: tx.Timestamp,
	}
}
