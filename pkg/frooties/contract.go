// Package frooties implements the Frooties NFT minting contract as a native
// contract of the simulator.
//
// All persistent state lives in the storage of the contract account, so the
// ledger's snapshot and revert give each call all-or-nothing semantics.
package frooties

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// ReserveScope selects the counter the reserve cap is enforced against.
type ReserveScope int

const (
	// ReserveGlobal tracks reserve mints under the zero address.
	ReserveGlobal ReserveScope = iota

	// ReservePerCaller tracks reserve mints per calling admin, apart from the
	// whitelist and public counters.
	ReservePerCaller
)

// ParseReserveScope parses a string into a ReserveScope.
func ParseReserveScope(s string) (ReserveScope, error) {
	switch s {
	case "", "global":
		return ReserveGlobal, nil
	case "caller":
		return ReservePerCaller, nil
	default:
		return ReserveGlobal, fmt.Errorf("unknown reserve scope %q", s)
	}
}

// Default contract parameters.
var (
	DefaultPrice    = new(big.Int).Mul(big.NewInt(5), big.NewInt(params.Ether/100)) // 0.05 ether
	DefaultSchedule = Schedule{
		Whitelist: 1651845600, // Fri May 06 2022 14:00:00 UTC
		Public:    1651849200,
		Reserve:   1651860000,
	}
)

const (
	DefaultWhitelistCap = 2
	DefaultPublicCap    = 3
	DefaultReserveCap   = 50
	DefaultBaseURI      = "https://metadata.thefrooties.com/"
	DefaultName         = "Frooties"
	DefaultSymbol       = "FROOTIES"

	// MaxCap bounds every mint cap. Minting writes one slot and one log per
	// token and no gas is charged, so an unbounded cap could stall the node.
	MaxCap = 10000
)

// Config holds the immutable parameters of a deployment.
type Config struct {
	Mode         StageMode
	Schedule     Schedule
	Price        *big.Int
	WhitelistCap uint64
	PublicCap    uint64
	ReserveCap   uint64
	ReserveScope ReserveScope
	BaseURI      string
	Name         string
	Symbol       string
}

// DefaultConfig returns the parameters of the production deployment.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeSchedule,
		Schedule:     DefaultSchedule,
		Price:        new(big.Int).Set(DefaultPrice),
		WhitelistCap: DefaultWhitelistCap,
		PublicCap:    DefaultPublicCap,
		ReserveCap:   DefaultReserveCap,
		ReserveScope: ReserveGlobal,
		BaseURI:      DefaultBaseURI,
		Name:         DefaultName,
		Symbol:       DefaultSymbol,
	}
}

func (c Config) checkCaps() error {
	caps := []struct {
		name  string
		value uint64
	}{
		{"whitelist", c.WhitelistCap},
		{"public", c.PublicCap},
		{"reserve", c.ReserveCap},
	}
	for _, cp := range caps {
		if cp.value > MaxCap {
			return fmt.Errorf("%s cap %d exceeds %d", cp.name, cp.value, MaxCap)
		}
	}
	return nil
}

// Ledger is the runtime a contract call executes against. Storage and balance
// are those of the contract account.
type Ledger interface {
	Load(slot common.Hash) common.Hash
	Store(slot, value common.Hash)
	Balance() *big.Int
	Transfer(to common.Address, amount *big.Int, data []byte) error
	Timestamp() uint64
	Emit(topics []common.Hash, data []byte)
}

// Msg carries the caller context of a call.
type Msg struct {
	Caller common.Address
	Value  *big.Int
}

func (m Msg) value() *big.Int {
	if m.Value == nil {
		return new(big.Int)
	}
	return m.Value
}

// Contract is a deployed Frooties instance.
type Contract struct {
	address  common.Address
	cfg      Config
	price    *uint256.Int
	verifier Verifier
}

// New binds a contract at address. A nil verifier uses ECDSAVerifier.
func New(address common.Address, cfg Config, verifier Verifier) (*Contract, error) {
	if cfg.Price == nil {
		cfg.Price = new(big.Int).Set(DefaultPrice)
	}
	price, overflow := uint256.FromBig(cfg.Price)
	if overflow || cfg.Price.Sign() < 0 {
		return nil, fmt.Errorf("price %s out of range", cfg.Price)
	}
	if err := cfg.checkCaps(); err != nil {
		return nil, err
	}
	if verifier == nil {
		verifier = ECDSAVerifier{}
	}
	return &Contract{
		address:  address,
		cfg:      cfg,
		price:    price,
		verifier: verifier,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Config returns the deployment parameters.
func (c *Contract) Config() Config {
	return c.cfg
}

// Initialize runs the constructor. A zero whitelistAdmin makes the deployer
// the whitelist signer.
func (c *Contract) Initialize(l Ledger, deployer, whitelistAdmin common.Address) {
	s := store{l}
	if whitelistAdmin == (common.Address{}) {
		whitelistAdmin = deployer
	}
	s.setAddress(common.HexToHash(SlotAdmin), deployer)
	s.setAddress(common.HexToHash(SlotWhitelistAdmin), whitelistAdmin)
}

// WhitelistMint mints quantity tokens to a caller holding a whitelist signature.
func (c *Contract) WhitelistMint(l Ledger, msg Msg, quantity *big.Int, signature []byte) error {
	if !c.active(l, StageWhitelist) {
		return revert(ErrPhaseInactive, ReasonWhitelistInactive)
	}
	q, err := parseQuantity(quantity)
	if err != nil {
		return err
	}

	s := store{l}
	signer, err := c.verifier.Recover(WhitelistDigest(msg.Caller, c.address), signature)
	if err != nil || signer != s.whitelistAdmin() {
		return revert(ErrBadSignature, ReasonSignerMismatch)
	}
	if err := c.checkQuota(s.amount(msg.Caller), q, c.cfg.WhitelistCap); err != nil {
		return err
	}
	if err := c.checkPayment(msg, q); err != nil {
		return err
	}

	c.mint(l, msg.Caller, AddressSlot(SlotAmounts, msg.Caller), q)
	return nil
}

// Mint is the public sale.
func (c *Contract) Mint(l Ledger, msg Msg, quantity *big.Int) error {
	if !c.active(l, StagePublic) {
		return revert(ErrPhaseInactive, ReasonPublicInactive)
	}
	q, err := parseQuantity(quantity)
	if err != nil {
		return err
	}

	s := store{l}
	if err := c.checkQuota(s.amount(msg.Caller), q, c.cfg.PublicCap); err != nil {
		return err
	}
	if err := c.checkPayment(msg, q); err != nil {
		return err
	}

	c.mint(l, msg.Caller, AddressSlot(SlotAmounts, msg.Caller), q)
	return nil
}

// ReserveMint mints free tokens to the admin, bounded by the reserve cap.
func (c *Contract) ReserveMint(l Ledger, msg Msg, quantity *big.Int) error {
	s := store{l}
	if msg.Caller != s.admin() {
		return revert(ErrUnauthorized, ReasonOnlyAdmin)
	}
	if !c.active(l, StageReserve) {
		return revert(ErrPhaseInactive, ReasonReserveInactive)
	}
	q, err := parseQuantity(quantity)
	if err != nil {
		return err
	}

	slot := c.reserveSlot(msg.Caller)
	if err := c.checkQuota(s.uint(slot), q, c.cfg.ReserveCap); err != nil {
		return err
	}

	c.mint(l, msg.Caller, slot, q)
	return nil
}

// SetMintStage sets the open phase of a manually staged deployment.
func (c *Contract) SetMintStage(l Ledger, msg Msg, stage *big.Int) error {
	s := store{l}
	if msg.Caller != s.admin() {
		return revert(ErrUnauthorized, ReasonOnlyAdmin)
	}
	if c.cfg.Mode != ModeManual {
		return revert(ErrInvalidArgument, ReasonStageScheduled)
	}
	if stage == nil || !stage.IsUint64() || stage.Uint64() > uint64(StageReserve) {
		return revert(ErrInvalidArgument, ReasonInvalidStage)
	}

	s.setUint(common.HexToHash(SlotMintStage), uint256.NewInt(stage.Uint64()))
	return nil
}

// Call sends value from the contract balance to target. This is how the admin
// withdraws mint proceeds. extra is accepted for interface compatibility.
func (c *Contract) Call(l Ledger, msg Msg, target common.Address, value *big.Int, data, extra []byte) error {
	s := store{l}
	if msg.Caller != s.admin() {
		return revert(ErrUnauthorized, ReasonOnlyAdmin)
	}
	if err := l.Transfer(target, value, data); err != nil {
		return revert(ErrTransferFailed, ReasonCallFailed)
	}
	return nil
}

// TokenURI returns the metadata URI of a token.
func (c *Contract) TokenURI(tokenID *big.Int) string {
	return c.cfg.BaseURI + tokenID.String()
}

// Amounts returns the mint counter of addr.
func (c *Contract) Amounts(l Ledger, addr common.Address) *big.Int {
	return store{l}.amount(addr).ToBig()
}

// ReserveAmounts returns the per-caller reserve counter of addr. It stays zero
// under the global reserve scope.
func (c *Contract) ReserveAmounts(l Ledger, addr common.Address) *big.Int {
	return store{l}.reserveAmount(addr).ToBig()
}

// Admin returns the contract admin.
func (c *Contract) Admin(l Ledger) common.Address {
	return store{l}.admin()
}

// WhitelistAdmin returns the whitelist signer.
func (c *Contract) WhitelistAdmin(l Ledger) common.Address {
	return store{l}.whitelistAdmin()
}

// TotalSupply returns the number of minted tokens.
func (c *Contract) TotalSupply(l Ledger) *big.Int {
	return store{l}.totalSupply().ToBig()
}

// MintStage returns the effective stage at the current block.
func (c *Contract) MintStage(l Ledger) Stage {
	if c.cfg.Mode == ModeManual {
		return store{l}.stage()
	}
	return c.cfg.Schedule.StageAt(l.Timestamp())
}

// OwnerOf returns the owner of a minted token.
func (c *Contract) OwnerOf(l Ledger, tokenID *big.Int) (common.Address, error) {
	id, overflow := uint256.FromBig(tokenID)
	if overflow || tokenID.Sign() < 0 {
		return common.Address{}, revert(ErrInvalidArgument, ReasonNonexistentToken)
	}
	owner := store{l}.owner(id)
	if owner == (common.Address{}) {
		return common.Address{}, revert(ErrInvalidArgument, ReasonNonexistentToken)
	}
	return owner, nil
}

// BalanceOf returns the number of tokens held by owner.
func (c *Contract) BalanceOf(l Ledger, owner common.Address) *big.Int {
	return store{l}.balance(owner).ToBig()
}

func (c *Contract) active(l Ledger, stage Stage) bool {
	if c.cfg.Mode == ModeManual {
		return store{l}.stage() == stage
	}
	return c.cfg.Schedule.Started(stage, l.Timestamp())
}

// reserveSlot returns the counter slot reserve mints are charged to. The
// global counter is amounts[address(0)].
func (c *Contract) reserveSlot(caller common.Address) common.Hash {
	if c.cfg.ReserveScope == ReservePerCaller {
		return AddressSlot(SlotReserveAmounts, caller)
	}
	return AddressSlot(SlotAmounts, common.Address{})
}

func (c *Contract) checkQuota(minted, q *uint256.Int, limit uint64) error {
	total, overflow := new(uint256.Int).AddOverflow(minted, q)
	if overflow || total.Cmp(uint256.NewInt(limit)) > 0 {
		return revert(ErrQuotaExceeded, fmt.Sprintf("Max %d", limit))
	}
	return nil
}

func (c *Contract) checkPayment(msg Msg, q *uint256.Int) error {
	cost, overflow := new(uint256.Int).MulOverflow(c.price, q)
	if overflow || msg.value().Cmp(cost.ToBig()) < 0 {
		return revert(ErrUnderPayment, ReasonInsufficientFunds)
	}
	return nil
}

// mint assigns the next q token ids to `to` and charges them to the counter
// at slot. All checks must have passed.
func (c *Contract) mint(l Ledger, to common.Address, slot common.Hash, q *uint256.Int) {
	s := store{l}
	one := uint256.NewInt(1)

	s.setUint(slot, new(uint256.Int).Add(s.uint(slot), q))
	s.setUint(AddressSlot(SlotBalances, to), new(uint256.Int).Add(s.balance(to), q))

	supply := s.totalSupply()
	id := new(uint256.Int).Set(supply)
	for i := uint64(0); i < q.Uint64(); i++ {
		id.Add(id, one)
		s.setAddress(UintSlot(SlotOwners, id), to)
		l.Emit(transferTopics(common.Address{}, to, id), nil)
	}
	s.setUint(common.HexToHash(SlotTotalSupply), new(uint256.Int).Add(supply, q))
}

func parseQuantity(quantity *big.Int) (*uint256.Int, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, revert(ErrInvalidArgument, ReasonInvalidQuantity)
	}
	q, overflow := uint256.FromBig(quantity)
	if overflow {
		return nil, revert(ErrInvalidArgument, ReasonInvalidQuantity)
	}
	return q, nil
}
