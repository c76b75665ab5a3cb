package gateway

import (
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/dinofi/godino/internal/auction"
	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/registry"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func opError(c *gin.Context, err error) {
	// 协议层拒绝统一映射为 409；参数/状态不存在类的错误由调用处先行处理
	c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
}

func parseAccount(raw string) (domain.Account, bool) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return domain.ZeroAccount, false
	}
	return common.HexToAddress(raw), true
}

func parseAmount(raw string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func positionDTO(p registry.Position) gin.H {
	return gin.H{
		"asset": gin.H{
			"custodian": p.Asset.Custodian.Hex(),
			"id":        p.Asset.ID.String(),
		},
		"claim_token": p.ClaimToken.Hex(),
		"controller":  p.Controller.Hex(),
	}
}

func lotDTO(l auction.LotView) gin.H {
	refunds := make(map[string]string, len(l.RefundOwed))
	for a, owed := range l.RefundOwed {
		refunds[a.Hex()] = owed.String()
	}
	settled := make([]string, 0, len(l.Settled))
	for _, a := range l.Settled {
		settled = append(settled, a.Hex())
	}
	return gin.H{
		"id":            l.ID,
		"payment_token": l.PaymentToken.Hex(),
		"asset": gin.H{
			"custodian": l.Asset.Custodian.Hex(),
			"id":        l.Asset.ID.String(),
		},
		"seller":        l.Seller.Hex(),
		"maturity":      l.Maturity,
		"reserve_price": l.ReservePrice.String(),
		"high_bidder":   l.HighBidder.Hex(),
		"high_bid":      l.HighBid.String(),
		"refund_owed":   refunds,
		"settled":       settled,
		"external":      l.External,
	}
}

func (s *Server) handleParams(c *gin.Context) {
	p := s.chain.Params()
	c.JSON(http.StatusOK, gin.H{
		"admin":               p.Admin.Hex(),
		"receiver":            p.Receiver.Hex(),
		"controller":          p.Controller.Hex(),
		"registry":            p.Registry.Hex(),
		"auction":             p.Auction.Hex(),
		"offering":            p.Offering.Hex(),
		"value_token":         p.ValueToken.Hex(),
		"nft_series":          p.NFTSeries.Hex(),
		"own_percentage":      p.OwnPercentage.String(),
		"fee_percentage":      p.FeePercentage.String(),
		"offering_percentage": p.OfferingPercentage.String(),
		"exit_percentage":     p.ExitPercentage.String(),
		"new_nft_fee":         p.NewNFTFee.String(),
	})
}

func (s *Server) handleBlock(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"block": s.chain.BlockNumber()})
}

func (s *Server) handleAdvanceBlock(c *gin.Context) {
	var req struct {
		N uint64 `json:"n"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid body")
		return
	}
	if req.N == 0 {
		req.N = 1
	}
	c.JSON(http.StatusOK, gin.H{"block": s.chain.AdvanceBlock(req.N)})
}

func (s *Server) handlePositionsList(c *gin.Context) {
	items := make([]gin.H, 0)
	for _, p := range s.mapper.Positions() {
		items = append(items, positionDTO(p))
	}
	c.JSON(http.StatusOK, gin.H{"positions": items})
}

func (s *Server) handlePositionGet(c *gin.Context) {
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return
	}
	pos, found := s.mapper.QueryByToken(token)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrUnknownToken.Error()})
		return
	}
	c.JSON(http.StatusOK, positionDTO(pos))
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Caller            string `json:"caller"`
		Custodian         string `json:"custodian"`
		AssetID           string `json:"asset_id"`
		Name              string `json:"name"`
		Symbol            string `json:"symbol"`
		Supply            string `json:"supply"`
		InitialController string `json:"initial_controller"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	caller, ok1 := parseAccount(req.Caller)
	custodian, ok2 := parseAccount(req.Custodian)
	if !ok1 || !ok2 {
		badRequest(c, "invalid account")
		return
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(req.AssetID), 10)
	if !ok {
		badRequest(c, "invalid asset_id")
		return
	}
	supply, ok := parseAmount(req.Supply)
	if !ok || supply.Sign() == 0 {
		badRequest(c, "invalid supply")
		return
	}
	initial := caller
	if req.InitialController != "" {
		if initial, ok = parseAccount(req.InitialController); !ok {
			badRequest(c, "invalid initial_controller")
			return
		}
	}

	token, err := s.mapper.Register(caller, domain.NewAssetRef(custodian, id), registry.ClaimTokenSpec{
		Name:   req.Name,
		Symbol: req.Symbol,
		Supply: supply,
	}, initial)
	if err != nil {
		opError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim_token": token.Hex()})
}

func (s *Server) handleExit(c *gin.Context) {
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	caller, ok := parseAccount(req.Caller)
	if !ok {
		badRequest(c, "invalid caller")
		return
	}
	if err := s.mapper.Exit(caller, token); err != nil {
		opError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleLotsList(c *gin.Context) {
	items := make([]gin.H, 0)
	for _, l := range s.engine.Lots() {
		items = append(items, lotDTO(l))
	}
	c.JSON(http.StatusOK, gin.H{"lots": items})
}

func (s *Server) handleLotGet(c *gin.Context) {
	lotID, err := strconv.ParseUint(c.Param("lotID"), 10, 64)
	if err != nil {
		badRequest(c, "invalid lot id")
		return
	}
	lot, found := s.engine.Lot(lotID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrUnknownLot.Error()})
		return
	}
	c.JSON(http.StatusOK, lotDTO(lot))
}

func (s *Server) handleLotCreate(c *gin.Context) {
	var req struct {
		Caller       string `json:"caller"`
		PaymentToken string `json:"payment_token"`
		Custodian    string `json:"custodian"`
		AssetID      string `json:"asset_id"`
		Seller       string `json:"seller"`
		Maturity     uint64 `json:"maturity"`
		ReservePrice string `json:"reserve_price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	caller, ok1 := parseAccount(req.Caller)
	payment, ok2 := parseAccount(req.PaymentToken)
	custodian, ok3 := parseAccount(req.Custodian)
	if !ok1 || !ok2 || !ok3 {
		badRequest(c, "invalid account")
		return
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(req.AssetID), 10)
	if !ok {
		badRequest(c, "invalid asset_id")
		return
	}
	reserve := big.NewInt(0)
	if req.ReservePrice != "" {
		if reserve, ok = parseAmount(req.ReservePrice); !ok {
			badRequest(c, "invalid reserve_price")
			return
		}
	}
	seller := caller
	if req.Seller != "" {
		if seller, ok = parseAccount(req.Seller); !ok {
			badRequest(c, "invalid seller")
			return
		}
	}

	lotID, err := s.engine.CreateLot(caller, payment, domain.NewAssetRef(custodian, id), seller, req.Maturity, reserve)
	if err != nil {
		opError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lot_id": lotID})
}

func (s *Server) handleBid(c *gin.Context) {
	lotID, err := strconv.ParseUint(c.Param("lotID"), 10, 64)
	if err != nil {
		badRequest(c, "invalid lot id")
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	caller, ok := parseAccount(req.Caller)
	if !ok {
		badRequest(c, "invalid caller")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		badRequest(c, "invalid amount")
		return
	}
	if err := s.engine.Bid(caller, lotID, amount); err != nil {
		opError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleClaim(c *gin.Context) {
	lotID, err := strconv.ParseUint(c.Param("lotID"), 10, 64)
	if err != nil {
		badRequest(c, "invalid lot id")
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	caller, ok := parseAccount(req.Caller)
	if !ok {
		badRequest(c, "invalid caller")
		return
	}
	if err := s.engine.Claim(caller, lotID); err != nil {
		opError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleBalance(c *gin.Context) {
	token, ok1 := parseAccount(c.Param("token"))
	account, ok2 := parseAccount(c.Param("account"))
	if !ok1 || !ok2 {
		badRequest(c, "invalid address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   token.Hex(),
		"account": account.Hex(),
		"balance": s.chain.BalanceOf(token, account).String(),
	})
}

func (s *Server) handleSupply(c *gin.Context) {
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        token.Hex(),
		"total_supply": s.chain.TotalSupply(token).String(),
	})
}

func (s *Server) handleTransfer(c *gin.Context) {
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return
	}
	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	from, ok1 := parseAccount(req.From)
	to, ok2 := parseAccount(req.To)
	amount, ok3 := parseAmount(req.Amount)
	if !ok1 || !ok2 || !ok3 {
		badRequest(c, "invalid transfer request")
		return
	}
	if err := s.chain.Transfer(token, from, to, amount); err != nil {
		opError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleApprove(c *gin.Context) {
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return
	}
	var req struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	owner, ok1 := parseAccount(req.Owner)
	spender, ok2 := parseAccount(req.Spender)
	amount, ok3 := parseAmount(req.Amount)
	if !ok1 || !ok2 || !ok3 {
		badRequest(c, "invalid approve request")
		return
	}
	if err := s.chain.Approve(token, owner, spender, amount); err != nil {
		opError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleOfferingGet(c *gin.Context) {
	if s.book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "offering module disabled"})
		return
	}
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return
	}
	pool, found := s.book.Query(token)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrUnknownPool.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":           pool.Token.Hex(),
		"payment_token":   pool.PaymentToken.Hex(),
		"owner":           pool.Owner.Hex(),
		"end_block":       pool.EndBlock,
		"offering_amount": pool.OfferingAmount.String(),
		"total_amount":    pool.TotalAmount.String(),
	})
}

func (s *Server) offeringOp(c *gin.Context, withAmount bool, op func(caller, token domain.Account, amount *big.Int) error) {
	if s.book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "offering module disabled"})
		return
	}
	token, ok := parseAccount(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	caller, ok := parseAccount(req.Caller)
	if !ok {
		badRequest(c, "invalid caller")
		return
	}
	var amount *big.Int
	if withAmount {
		if amount, ok = parseAmount(req.Amount); !ok {
			badRequest(c, "invalid amount")
			return
		}
	}
	if err := op(caller, token, amount); err != nil {
		opError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleOfferingDeposit(c *gin.Context) {
	s.offeringOp(c, true, func(caller, token domain.Account, amount *big.Int) error {
		return s.book.Deposit(caller, token, amount)
	})
}

func (s *Server) handleOfferingWithdraw(c *gin.Context) {
	s.offeringOp(c, true, func(caller, token domain.Account, amount *big.Int) error {
		return s.book.Withdraw(caller, token, amount)
	})
}

func (s *Server) handleOfferingClaim(c *gin.Context) {
	s.offeringOp(c, false, func(caller, token domain.Account, _ *big.Int) error {
		return s.book.Claim(caller, token)
	})
}

func (s *Server) handleEventsRecent(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"events": []any{}})
		return
	}
	limit := 100
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 2000 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": s.journal.Recent(limit)})
}
