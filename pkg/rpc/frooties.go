package rpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// frooties_deploy deploys the minting contract and returns its address.
// Params: [from, whitelistAdmin]. from defaults to the first local account
// and whitelistAdmin defaults to from.
func (s *Server) frootiesDeploy(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var from common.Address
	if len(args) > 0 && args[0] != nil {
		if from, rpcErr = argAddress(args[0]); rpcErr != nil {
			return nil, rpcErr
		}
	} else {
		accounts := s.backend.Accounts()
		if len(accounts) == 0 {
			return nil, &ErrorObject{Code: ErrCodeInvalidInput, Message: "No accounts available"}
		}
		from = accounts[0]
	}

	whitelistAdmin := from
	if len(args) > 1 && args[1] != nil {
		if whitelistAdmin, rpcErr = argAddress(args[1]); rpcErr != nil {
			return nil, rpcErr
		}
	}

	addr, err := s.backend.DeployFrooties(ctx, from, whitelistAdmin)
	if err != nil {
		return nil, toError(err)
	}
	s.logger.Info("frooties deployed",
		zap.Stringer("address", addr),
		zap.Stringer("from", from),
		zap.Stringer("whitelistAdmin", whitelistAdmin),
	)
	return addr.Hex(), nil
}
