// Command association-demo walks one association through its whole life on
// a live chain: an ephemeral initiator and a delegated agent approver sign a
// record, it is validated locally and through the validation registry, and
// the agent's delegation is redeemed to store it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/chain"
	awsclient "github.com/cyphera/cyphera-associations/internal/client/aws"
	"github.com/cyphera/cyphera-associations/internal/config"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/services"
	"github.com/cyphera/cyphera-associations/internal/store"
	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/interop"
	"github.com/cyphera/cyphera-associations/pkg/signer"
)

type options struct {
	data        string
	interfaceID string
	validFor    time.Duration
	dryRun      bool
	debug       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.data, "data", "", "opaque record data")
	flag.StringVar(&opts.interfaceID, "interface-id", "0x00000000", "bytes4 interface id of the record")
	flag.DurationVar(&opts.validFor, "valid-for", 365*24*time.Hour, "record lifetime, 0 for no expiry")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "sign and validate without submitting")
	flag.BoolVar(&opts.debug, "debug", false, "dump records and delegations")
	flag.Parse()

	config.LoadDotEnv()
	logger.InitLogger(os.Getenv(config.EnvStage))
	defer logger.Sync()

	ctx := context.Background()
	if err := run(ctx, opts); err != nil {
		logger.Fatal("Association demo failed", zap.Error(err))
	}
}

func run(ctx context.Context, opts options) error {
	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		secrets = awsclient.NewSecretsManagerClientWithAPI(nil)
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}
	if err := cfg.RequireOwnerKey(); err != nil {
		return err
	}
	var interfaceID association.InterfaceID
	if err := interfaceID.UnmarshalText([]byte(opts.interfaceID)); err != nil {
		return err
	}

	owner, err := signer.NewPrivateKeySignerFromHex(cfg.OwnerPrivateKey)
	if err != nil {
		return err
	}
	client, err := cfg.DialChain(ctx, logger.Log)
	if err != nil {
		return err
	}
	chainID := client.ChainID()
	env := cfg.DelegationEnvironment()

	agent, err := resolveAgent(ctx, cfg, client, owner)
	if err != nil {
		return err
	}
	logger.Info("Agent account resolved", zap.String("agent", agent.Hex()), zap.String("owner", owner.Address().Hex()))

	// Agent grants a session key the right to call storeAssociation on the store.
	session, err := signer.GeneratePrivateKeySigner()
	if err != nil {
		return err
	}
	scope := delegation.Scope{
		Targets:   []common.Address{cfg.AssociationStore},
		Selectors: [][4]byte{[4]byte(store.StoreABI.Methods["storeAssociation"].ID)},
	}
	if env.AllowedTargetsEnforcer == (common.Address{}) || env.AllowedMethodsEnforcer == (common.Address{}) {
		scope = delegation.Scope{}
		logger.Warn("Caveat enforcers not configured, session delegation is unrestricted")
	}
	root, err := delegation.New(env, agent, session.Address(), scope, nil)
	if err != nil {
		return err
	}
	if err := delegation.Sign(&root, owner, cfg.DelegationManager, chainID); err != nil {
		return err
	}
	sessionChain := delegation.Chain{root}

	record, err := buildRecord(chainID.Uint64(), agent, interfaceID, opts)
	if err != nil {
		return err
	}
	initiator := record.signer
	sar := association.Build(record.Record)
	if err := association.Sign(sar, association.Initiator, initiator, association.KeyTypeK1); err != nil {
		return err
	}
	approverSigner := delegation.DelegatedSigner{Delegate: session, Chain: sessionChain}
	if err := association.Sign(sar, association.Approver, approverSigner, association.KeyTypeDelegated); err != nil {
		return err
	}

	id, err := sar.ID()
	if err != nil {
		return err
	}
	contentID, err := association.ContentID(id)
	if err != nil {
		return err
	}
	initiatorAddr, approverAddr := sar.Record.Decoded()
	logger.Info("Association signed",
		zap.String("association_id", id.Hex()),
		zap.String("association_cid", contentID.String()),
		zap.Stringer("initiator", initiatorAddr),
		zap.Stringer("approver", approverAddr),
		zap.String("status", string(sar.Status())),
	)
	if opts.debug {
		spew.Dump(sar, sessionChain)
	}

	contracts := chain.ContractVerifier{Client: client}
	verifier := delegation.Verifier{Manager: cfg.DelegationManager, ChainID: chainID}
	if len(scope.Targets) > 0 {
		verifier.Caveats = delegation.EnforcersIn(env.AllowedTargetsEnforcer, env.AllowedMethodsEnforcer)
	}
	validator := association.NewValidator(signer.Checker{Contracts: contracts}, verifier)
	result := validator.Validate(ctx, sar)
	logger.Info("Local validation",
		zap.Bool("valid", result.Valid()),
		zap.Bool("active", result.Active),
		zap.NamedError("initiator_reason", result.InitiatorReason),
		zap.NamedError("approver_reason", result.ApproverReason),
	)
	if !result.Valid() {
		return errors.Join(errors.New("association failed local validation"), result.InitiatorReason, result.ApproverReason)
	}

	if cfg.ValidationRegistry != (common.Address{}) {
		ok, err := contracts.IsValidSignature(ctx, cfg.ValidationRegistry, id, sar.ApproverSignature)
		if err != nil {
			logger.Warn("Validation registry call failed", zap.Error(err))
		} else {
			logger.Info("Validation registry", zap.Bool("valid", ok), zap.String("registry", cfg.ValidationRegistry.Hex()))
		}
	}

	if opts.dryRun {
		body, err := json.Marshal(sar)
		if err != nil {
			return err
		}
		logger.Info("Dry run, not submitting", zap.ByteString("sar", body))
		return nil
	}

	// The transaction sender redeems, so the session key redelegates to it.
	redeemer, err := delegation.New(env, session.Address(), client.From(), scope, &root)
	if err != nil {
		return err
	}
	if err := delegation.Sign(&redeemer, session, cfg.DelegationManager, chainID); err != nil {
		return err
	}
	redemptionChain := sessionChain.Extend(redeemer)
	if opts.debug {
		spew.Dump(redemptionChain)
	}

	storeClient := store.NewClient(client, cfg.AssociationStore, logger.Log)
	svc := services.NewAssociationService(client, storeClient, cfg.DelegationManager, cfg.SubmitTimeout)
	submitted, err := svc.StoreWithDelegation(ctx, sar, redemptionChain)
	if errors.Is(err, chain.ErrOutcomeUnknown) {
		logger.Warn("Receipt not seen yet, checking the store", zap.String("tx_hash", submitted.Hash.Hex()))
		outcome, resolveErr := svc.Resolve(ctx, sar, submitted.Hash)
		if resolveErr != nil {
			return resolveErr
		}
		if outcome != services.OutcomeConfirmed {
			return err
		}
	} else if err != nil {
		return err
	}
	logger.Info("Association stored", zap.String("tx_hash", submitted.Hash.Hex()), zap.String("status", string(sar.Status())))

	listed, err := storeClient.GetAssociationsForAccount(ctx, chainID, agent)
	if err != nil {
		return err
	}
	for _, a := range listed {
		logger.Info("Stored association",
			zap.String("association_id", a.AssociationID.Hex()),
			zap.String("counterparty", a.CounterpartyAddress),
		)
	}
	return nil
}

// resolveAgent picks the approver account: the identity registry owner of
// the configured agent id, the configured agent address, or the owner key.
func resolveAgent(ctx context.Context, cfg *config.Config, client chain.Client, owner signer.Signer) (common.Address, error) {
	if cfg.AgentID != nil && cfg.IdentityRegistry != (common.Address{}) {
		return chain.OwnerOf(ctx, client, cfg.IdentityRegistry, cfg.AgentID)
	}
	if cfg.AgentAddress != (common.Address{}) {
		return cfg.AgentAddress, nil
	}
	return owner.Address(), nil
}

type demoRecord struct {
	association.Record
	signer *signer.PrivateKeySigner
}

// buildRecord creates an ephemeral initiator key and the record it shares
// with agent.
func buildRecord(chainID uint64, agent common.Address, interfaceID association.InterfaceID, opts options) (demoRecord, error) {
	initiator, err := signer.GeneratePrivateKeySigner()
	if err != nil {
		return demoRecord{}, err
	}
	now := uint64(time.Now().Unix())
	record := association.Record{
		Initiator:   interop.EncodeEVM(chainID, initiator.Address()),
		Approver:    interop.EncodeEVM(chainID, agent),
		ValidAt:     now,
		InterfaceID: interfaceID,
		Data:        []byte(opts.data),
	}
	if opts.validFor > 0 {
		record.ValidUntil = now + uint64(opts.validFor.Seconds())
	}
	return demoRecord{Record: record, signer: initiator}, nil
}
