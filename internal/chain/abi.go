// Package chain talks to the EVM RPC endpoint: it wraps go-ethereum's
// client, batches reads through Multicall3, and decodes the fixed-layout
// Aave Pool / PoolDataProvider return data without pulling in a full ABI
// reflection library.
package chain

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const maxFloat64 = math.MaxFloat64

const wordSize = 32

// selector returns the first 4 bytes of keccak256(signature), e.g.
// "getUserAccountData(address)".
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// pad32 left-pads b to a 32-byte ABI word.
func pad32(b []byte) []byte {
	out := make([]byte, wordSize)
	copy(out[wordSize-len(b):], b)
	return out
}

// encodeAddress ABI-encodes a single address argument.
func encodeAddress(addr [20]byte) []byte {
	return pad32(addr[:])
}

// EncodeGetUserAccountData builds the calldata for
// Pool.getUserAccountData(address user).
func EncodeGetUserAccountData(user [20]byte) []byte {
	data := selector("getUserAccountData(address)")
	return append(data, encodeAddress(user)...)
}

// EncodeGetUserReserveData builds the calldata for
// PoolDataProvider.getUserReserveData(address asset, address user).
func EncodeGetUserReserveData(asset, user [20]byte) []byte {
	data := selector("getUserReserveData(address,address)")
	data = append(data, encodeAddress(asset)...)
	data = append(data, encodeAddress(user)...)
	return data
}

// EncodeGetReservesList builds the calldata for Pool.getReservesList().
func EncodeGetReservesList() []byte {
	return selector("getReservesList()")
}

// EncodeDecimals builds the calldata for the ERC20 decimals() view.
func EncodeDecimals() []byte {
	return selector("decimals()")
}

// EncodeGetAssetsPrices builds the calldata for
// PriceOracle.getAssetsPrices(address[] assets), ABI-encoding the dynamic
// array argument (offset word, length word, then one word per element).
func EncodeGetAssetsPrices(assets [][20]byte) []byte {
	data := selector("getAssetsPrices(address[])")
	offset := make([]byte, wordSize)
	offset[wordSize-1] = 32
	data = append(data, offset...)
	data = append(data, pad32(big.NewInt(int64(len(assets))).Bytes())...)
	for _, a := range assets {
		data = append(data, encodeAddress(a)...)
	}
	return data
}

func word(data []byte, index int) []byte {
	start := index * wordSize
	end := start + wordSize
	if len(data) < end {
		return make([]byte, wordSize)
	}
	return data[start:end]
}

func wordToUint256(data []byte, index int) *uint256.Int {
	v := new(uint256.Int)
	v.SetBytes(word(data, index))
	return v
}

// UserAccountData is the decoded return tuple of Pool.getUserAccountData:
// (totalCollateralBase, totalDebtBase, availableBorrowsBase,
// currentLiquidationThreshold, ltv, healthFactor).
type UserAccountData struct {
	TotalCollateralBase *uint256.Int
	TotalDebtBase       *uint256.Int
	HealthFactor        *uint256.Int
}

// DecodeUserAccountData decodes a getUserAccountData return payload. Word
// indices follow the Aave Pool ABI: word0 totalCollateralBase, word1
// totalDebtBase, word5 healthFactor.
func DecodeUserAccountData(data []byte) (UserAccountData, error) {
	if len(data) < 6*wordSize {
		return UserAccountData{}, fmt.Errorf("getUserAccountData return too short: %d bytes", len(data))
	}
	return UserAccountData{
		TotalCollateralBase: wordToUint256(data, 0),
		TotalDebtBase:       wordToUint256(data, 1),
		HealthFactor:        wordToUint256(data, 5),
	}, nil
}

// UserReserveData is the decoded return tuple of
// PoolDataProvider.getUserReserveData: word0 currentATokenBalance, word2
// currentVariableDebt (matching the standard AaveProtocolDataProvider ABI).
type UserReserveData struct {
	CurrentATokenBalance *uint256.Int
	CurrentVariableDebt  *uint256.Int
}

// DecodeUserReserveData decodes a getUserReserveData return payload.
func DecodeUserReserveData(data []byte) (UserReserveData, error) {
	if len(data) < 9*wordSize {
		return UserReserveData{}, fmt.Errorf("getUserReserveData return too short: %d bytes", len(data))
	}
	return UserReserveData{
		CurrentATokenBalance: wordToUint256(data, 0),
		CurrentVariableDebt:  wordToUint256(data, 2),
	}, nil
}

// DecodeReservesList decodes the dynamic address[] returned by
// getReservesList(): word0 is the tail offset, word1 (at the offset) the
// array length, followed by one address per word.
func DecodeReservesList(data []byte) ([][20]byte, error) {
	if len(data) < wordSize {
		return nil, fmt.Errorf("getReservesList return too short: %d bytes", len(data))
	}
	offsetWord := word(data, 0)
	offset := int(binary.BigEndian.Uint64(offsetWord[24:32]))
	if offset+wordSize > len(data) {
		return nil, fmt.Errorf("getReservesList offset out of range")
	}
	lengthWord := data[offset : offset+wordSize]
	length := int(binary.BigEndian.Uint64(lengthWord[24:32]))
	elementsStart := offset + wordSize
	reserves := make([][20]byte, 0, length)
	for i := 0; i < length; i++ {
		start := elementsStart + i*wordSize
		end := start + wordSize
		if end > len(data) {
			return nil, fmt.Errorf("getReservesList truncated at element %d", i)
		}
		var addr [20]byte
		copy(addr[:], data[start+12:end])
		reserves = append(reserves, addr)
	}
	return reserves, nil
}

// DecodeUint8 decodes a single uint8 return value (e.g. decimals()).
func DecodeUint8(data []byte) (uint8, error) {
	if len(data) < wordSize {
		return 0, fmt.Errorf("uint8 return too short: %d bytes", len(data))
	}
	return data[wordSize-1], nil
}

// DecodeAssetsPrices decodes the dynamic uint256[] returned by
// getAssetsPrices(address[]).
func DecodeAssetsPrices(data []byte) ([]*uint256.Int, error) {
	if len(data) < wordSize {
		return nil, fmt.Errorf("getAssetsPrices return too short: %d bytes", len(data))
	}
	offsetWord := word(data, 0)
	offset := int(binary.BigEndian.Uint64(offsetWord[24:32]))
	if offset+wordSize > len(data) {
		return nil, fmt.Errorf("getAssetsPrices offset out of range")
	}
	lengthWord := data[offset : offset+wordSize]
	length := int(binary.BigEndian.Uint64(lengthWord[24:32]))
	elementsStart := offset + wordSize
	prices := make([]*uint256.Int, 0, length)
	for i := 0; i < length; i++ {
		start := elementsStart + i*wordSize
		end := start + wordSize
		if end > len(data) {
			return nil, fmt.Errorf("getAssetsPrices truncated at element %d", i)
		}
		v := new(uint256.Int)
		v.SetBytes(data[start:end])
		prices = append(prices, v)
	}
	return prices, nil
}

// ToF64 converts a U256 fixed-point value with the given decimal precision
// to a float64, saturating to math.MaxFloat64 on overflow rather than
// panicking. Splits the value into quotient and remainder against 10^precision
// the way the reference implementation does, to keep the fractional part
// precise instead of losing it to a single big-integer-to-float conversion.
func ToF64(value *uint256.Int, precision uint8) float64 {
	ray := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(precision)))
	if ray.IsZero() {
		return maxFloat64
	}
	quotient := new(uint256.Int).Div(value, ray)
	remainder := new(uint256.Int).Mod(value, ray)

	quotientF := new(big.Float).SetInt(quotient.ToBig())
	remainderF := new(big.Float).SetInt(remainder.ToBig())
	rayF := new(big.Float).SetInt(ray.ToBig())

	fractional := new(big.Float).Quo(remainderF, rayF)
	total := new(big.Float).Add(quotientF, fractional)

	result, _ := total.Float64()
	if math.IsInf(result, 1) || math.IsNaN(result) {
		return maxFloat64
	}
	return result
}
