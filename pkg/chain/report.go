// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/settlement"
)

const receiverABI = `[{"type":"function","name":"onReport","stateMutability":"nonpayable","inputs":[{"name":"report","type":"bytes"}],"outputs":[]}]`

var (
	ErrNoReporterKey = errors.New("reporter key is not configured")
	ErrBadReport     = errors.New("report has the wrong size")
)

var receiver = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(receiverABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// ReportWriterConfig describes the receiver contract and the signing account.
type ReportWriterConfig struct {
	Receiver    common.Address
	ChainID     *big.Int
	ReporterKey string // hex secp256k1 key, 0x prefix optional
	GasLimit    uint64
}

// ReportWriter signs and sends onReport(bytes) transactions. Sends are
// serialized so nonces never collide.
type ReportWriter struct {
	backend  TxBackend
	cfg      ReportWriterConfig
	from     common.Address
	signer   types.Signer
	log      log.Logger
	key      *ecdsa.PrivateKey
	sendLock sync.Mutex
}

// NewReportWriter validates the configuration and derives the sender.
func NewReportWriter(backend TxBackend, cfg ReportWriterConfig, logger log.Logger) (*ReportWriter, error) {
	const op = "chain.report_writer"

	if cfg.ReporterKey == "" {
		return nil, faults.Wrap(faults.KindMisconfigured, op, ErrNoReporterKey)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, faults.New(faults.KindMisconfigured, op, "chain id is required")
	}
	if cfg.Receiver == (common.Address{}) {
		return nil, faults.New(faults.KindMisconfigured, op, "report receiver is required")
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.ReporterKey, "0x"))
	if err != nil {
		return nil, faults.Wrap(faults.KindMisconfigured, op, fmt.Errorf("parse reporter key: %w", err))
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 300_000
	}
	cfg.ReporterKey = ""

	w := &ReportWriter{
		backend: backend,
		cfg:     cfg,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(cfg.ChainID),
		log:     logger,
		key:     key,
	}
	logger.Info("report writer ready",
		log.String("from", w.from.Hex()),
		log.String("receiver", cfg.Receiver.Hex()),
		log.String("chainId", cfg.ChainID.String()))
	return w, nil
}

// From is the reporting account.
func (w *ReportWriter) From() common.Address { return w.from }

// WriteReport submits an encoded settlement report and returns the
// transaction hash. It does not wait for inclusion.
func (w *ReportWriter) WriteReport(ctx context.Context, report []byte) (common.Hash, error) {
	const op = "chain.write_report"

	if len(report) != settlement.ReportSize {
		return common.Hash{}, faults.Wrap(faults.KindBadRequest, op, fmt.Errorf("%w: %d bytes", ErrBadReport, len(report)))
	}
	data, err := receiver.Pack("onReport", report)
	if err != nil {
		return common.Hash{}, faults.Wrap(faults.KindBadRequest, op, err)
	}

	w.sendLock.Lock()
	defer w.sendLock.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, err
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, err
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	to := w.cfg.Receiver
	tx, err := types.SignNewTx(w.key, w.signer, &types.DynamicFeeTx{
		ChainID:   w.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       w.cfg.GasLimit,
		To:        &to,
		Data:      data,
	})
	if err != nil {
		return common.Hash{}, faults.Wrap(faults.KindMisconfigured, op, err)
	}
	if err := w.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}

	w.log.Info("report submitted",
		log.String("tx", tx.Hash().Hex()),
		zap.Uint64("nonce", nonce))
	return tx.Hash(), nil
}

// UnpackReport extracts the report argument from onReport calldata.
func UnpackReport(calldata []byte) ([]byte, error) {
	if len(calldata) < 4 {
		return nil, ErrBadReport
	}
	method, err := receiver.MethodById(calldata[:4])
	if err != nil {
		return nil, err
	}
	vals, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, err
	}
	return vals[0].([]byte), nil
}
