package vm

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	receiptFieldID         protowire.Number = 1
	receiptFieldKind       protowire.Number = 2
	receiptFieldSigner     protowire.Number = 3
	receiptFieldStatus     protowire.Number = 4
	receiptFieldError      protowire.Number = 5
	receiptFieldErrorCode  protowire.Number = 6
	receiptFieldMessage    protowire.Number = 7
	receiptFieldLogs       protowire.Number = 8
	receiptFieldWriteCount protowire.Number = 9
	receiptFieldSlot       protowire.Number = 10
	receiptFieldTimestamp  protowire.Number = 11
	receiptFieldErrorKind  protowire.Number = 12
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// MarshalReceipt 回执落库格式
func MarshalReceipt(r *Receipt) []byte {
	b := make([]byte, 0, 128)
	b = appendString(b, receiptFieldID, r.InstructionID)
	b = appendString(b, receiptFieldKind, r.Kind)
	b = appendString(b, receiptFieldSigner, r.Signer)
	b = appendString(b, receiptFieldStatus, r.Status)
	b = appendString(b, receiptFieldError, r.Error)
	b = appendVarint(b, receiptFieldErrorCode, uint64(r.ErrorCode))
	b = appendString(b, receiptFieldMessage, r.Message)
	for _, l := range r.Logs {
		b = protowire.AppendTag(b, receiptFieldLogs, protowire.BytesType)
		b = protowire.AppendString(b, l)
	}
	b = appendVarint(b, receiptFieldWriteCount, uint64(r.WriteCount))
	b = appendVarint(b, receiptFieldSlot, r.Slot)
	b = appendVarint(b, receiptFieldTimestamp, uint64(r.Timestamp))
	b = appendString(b, receiptFieldErrorKind, r.ErrorKind)
	return b
}

// UnmarshalReceipt 解码回执
func UnmarshalReceipt(b []byte) (*Receipt, error) {
	r := &Receipt{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("receipt tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("receipt field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case receiptFieldID:
				r.InstructionID = v
			case receiptFieldKind:
				r.Kind = v
			case receiptFieldSigner:
				r.Signer = v
			case receiptFieldStatus:
				r.Status = v
			case receiptFieldError:
				r.Error = v
			case receiptFieldMessage:
				r.Message = v
			case receiptFieldLogs:
				r.Logs = append(r.Logs, v)
			case receiptFieldErrorKind:
				r.ErrorKind = v
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("receipt field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case receiptFieldErrorCode:
				r.ErrorCode = uint32(v)
			case receiptFieldWriteCount:
				r.WriteCount = int(v)
			case receiptFieldSlot:
				r.Slot = v
			case receiptFieldTimestamp:
				r.Timestamp = int64(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("receipt field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}
