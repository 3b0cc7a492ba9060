package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stake-plus/base-buddies/src/challenge"
)

// DefaultContract is the deployed Base Buddies contract.
const DefaultContract = "0xBe6C9472fE57be0D902e35c9CF2AB9de4C011009"

const challengeTuple = `{"name":"","type":"tuple","components":[
	{"name":"id","type":"uint256"},
	{"name":"title","type":"string"},
	{"name":"description","type":"string"},
	{"name":"creatorNickname","type":"string"},
	{"name":"creatorAddress","type":"address"},
	{"name":"reward","type":"uint256"},
	{"name":"deadline","type":"uint256"},
	{"name":"maxParticipants","type":"uint256"},
	{"name":"currentParticipants","type":"uint256"}]}`

const challengeTupleArray = `{"name":"","type":"tuple[]","components":[
	{"name":"id","type":"uint256"},
	{"name":"title","type":"string"},
	{"name":"description","type":"string"},
	{"name":"creatorNickname","type":"string"},
	{"name":"creatorAddress","type":"address"},
	{"name":"reward","type":"uint256"},
	{"name":"deadline","type":"uint256"},
	{"name":"maxParticipants","type":"uint256"},
	{"name":"currentParticipants","type":"uint256"}]}`

const idInput = `{"name":"_challengeId","type":"uint256"}`

// ContractABI is the subset of the contract this service uses.
const ContractABI = `[
{"type":"function","name":"getAllChallenges","stateMutability":"view","inputs":[],"outputs":[` + challengeTupleArray + `]},
{"type":"function","name":"getChallenge","stateMutability":"view","inputs":[` + idInput + `],"outputs":[` + challengeTuple + `]},
{"type":"function","name":"getUserCreatedChallenges","stateMutability":"view","inputs":[{"name":"_user","type":"address"}],"outputs":[` + challengeTupleArray + `]},
{"type":"function","name":"getUserCompletedChallenges","stateMutability":"view","inputs":[{"name":"_user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"createChallenge","stateMutability":"payable","inputs":[
	{"name":"_title","type":"string"},
	{"name":"_description","type":"string"},
	{"name":"_creatorNickname","type":"string"},
	{"name":"_reward","type":"uint256"},
	{"name":"_deadline","type":"uint256"},
	{"name":"_maxParticipants","type":"uint256"}],"outputs":[]},
{"type":"function","name":"completeChallenge","stateMutability":"nonpayable","inputs":[` + idInput + `],"outputs":[]},
{"type":"function","name":"editChallenge","stateMutability":"nonpayable","inputs":[` + idInput + `,
	{"name":"_title","type":"string"},
	{"name":"_description","type":"string"},
	{"name":"_reward","type":"uint256"},
	{"name":"_deadline","type":"uint256"}],"outputs":[]},
{"type":"function","name":"deleteChallenge","stateMutability":"nonpayable","inputs":[` + idInput + `],"outputs":[]},
{"type":"function","name":"refundCreator","stateMutability":"nonpayable","inputs":[` + idInput + `],"outputs":[]},
{"type":"event","name":"ChallengeCreated","anonymous":false,"inputs":[
	{"name":"id","type":"uint256","indexed":true},
	{"name":"creator","type":"address","indexed":true}]}
]`

var parsedABI = mustParse(ContractABI)

func mustParse(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: bad contract ABI: " + err.Error())
	}
	return a
}

// tuple mirrors the struct the abi decoder builds for a challenge; field
// order must follow the ABI components.
type tuple struct {
	Id                  *big.Int
	Title               string
	Description         string
	CreatorNickname     string
	CreatorAddress      common.Address
	Reward              *big.Int
	Deadline            *big.Int
	MaxParticipants     *big.Int
	CurrentParticipants *big.Int
}

func (t tuple) raw() challenge.RawRecord {
	return challenge.RawRecord{
		ID:                  t.Id,
		Title:               t.Title,
		Description:         t.Description,
		CreatorAddress:      t.CreatorAddress.Hex(),
		CreatorNickname:     t.CreatorNickname,
		Reward:              t.Reward,
		Deadline:            t.Deadline,
		MaxParticipants:     t.MaxParticipants,
		CurrentParticipants: t.CurrentParticipants,
	}
}

// decodeTx reads the contract call carried by tx. Method is left empty
// when tx is not addressed to contract or calls nothing known.
func decodeTx(tx *types.Transaction, contract common.Address) (challenge.SentTx, error) {
	out := challenge.SentTx{Hash: tx.Hash().Hex()}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return out, fmt.Errorf("recover sender: %w", err)
	}
	out.From = from.Hex()

	input := tx.Data()
	if tx.To() == nil || *tx.To() != contract || len(input) < 4 {
		return out, nil
	}
	m, err := parsedABI.MethodById(input[:4])
	if err != nil {
		return out, nil
	}
	args, err := m.Inputs.Unpack(input[4:])
	if err != nil {
		return out, nil
	}
	out.Method = m.Name
	if m.Name != challenge.MethodCreate && len(args) > 0 {
		if id, ok := args[0].(*big.Int); ok && id.IsUint64() {
			out.ChallengeID = id.Uint64()
		}
	}
	return out, nil
}

// Pack encodes call as transaction input.
func Pack(call challenge.Call) ([]byte, error) {
	return parsedABI.Pack(call.Method, call.Args...)
}

// CreatedID extracts the challenge id from a ChallengeCreated log in
// receipt logs. It returns 0 when there is none.
func CreatedID(logs []*types.Log, contract common.Address) uint64 {
	ev := parsedABI.Events["ChallengeCreated"]
	for _, l := range logs {
		if l == nil || l.Address != contract || len(l.Topics) < 2 || l.Topics[0] != ev.ID {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if id.IsUint64() {
			return id.Uint64()
		}
	}
	return 0
}
