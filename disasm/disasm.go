// Package disasm renders a finalized code.Object back into a readable
// listing: one line per instruction, offset-prefixed, operands resolved
// against the agent where that adds information (string ids print their
// backing text).
package disasm

import (
	"fmt"
	"io"
	"math"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/opcode"
)

// u64At decodes the 8-byte little-endian operand at ip. Write has already
// checked the operand tail against OperandWidth, so the slice cannot be
// short here.
func u64At(obj *code.Object, ip int) uint64 {
	b := obj.Slice(ip, ip+8)
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Write renders obj's full instruction stream to w. An invalid opcode byte
// or a truncated operand tail stops disassembly with an error; the offset
// and offending byte are still printed first so the operator can see where
// the stream went bad.
func Write(w io.Writer, ag *agent.Agent, obj *code.Object) error {
	ip := 0
	for ip < obj.Len() {
		op := opcode.Code(obj.At(ip))
		if !op.Valid() {
			fmt.Fprintf(w, "%08d  ?? (byte %d)\n", ip, obj.At(ip))
			return fmt.Errorf("unknown opcode byte %d at offset %d", obj.At(ip), ip)
		}
		if rest := obj.Len() - ip - 1; rest < op.OperandWidth() {
			fmt.Fprintf(w, "%08d  %s ...\n", ip, op)
			return fmt.Errorf("truncated %s at offset %d: need %d operand bytes, have %d", op, ip, op.OperandWidth(), rest)
		}
		start := ip
		ip++

		switch op {
		case opcode.Halt, opcode.ConstNull, opcode.ConstTrue, opcode.ConstFalse,
			opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Mod, opcode.Exp,
			opcode.Neg, opcode.Not, opcode.And, opcode.Or,
			opcode.CmpEq, opcode.CmpNotEq, opcode.CmpLess, opcode.CmpLessEq, opcode.CmpGreater, opcode.CmpGreaterEq,
			opcode.Pop, opcode.Return:
			fmt.Fprintf(w, "%08d  %s\n", start, op)

		case opcode.ConstInt:
			fmt.Fprintf(w, "%08d  %s %d\n", start, op, int64(u64At(obj, ip)))
			ip += 8
		case opcode.ConstDouble:
			fmt.Fprintf(w, "%08d  %s %g\n", start, op, math.Float64frombits(u64At(obj, ip)))
			ip += 8
		case opcode.ConstString:
			id := u64At(obj, ip)
			ip += 8
			fmt.Fprintf(w, "%08d  %s #%d %q\n", start, op, id, safeString(ag, id))

		case opcode.Jump, opcode.JumpIfTrue, opcode.JumpIfFalse:
			fmt.Fprintf(w, "%08d  %s -> %d\n", start, op, u64At(obj, ip))
			ip += 8

		case opcode.LoadLocal, opcode.StoreLocal, opcode.LoadArgument, opcode.StoreArgument,
			opcode.LoadUpvalue, opcode.StoreUpvalue, opcode.BindLocal, opcode.BindArgument, opcode.BindUpvalue,
			opcode.Call:
			fmt.Fprintf(w, "%08d  %s %d\n", start, op, u64At(obj, ip))
			ip += 8

		case opcode.LoadGlobal, opcode.StoreGlobal, opcode.DeclareGlobal:
			id := u64At(obj, ip)
			ip += 8
			fmt.Fprintf(w, "%08d  %s #%d %q\n", start, op, id, safeString(ag, id))

		case opcode.NewFunction:
			arity := u64At(obj, ip)
			ip += 8
			entry := u64At(obj, ip)
			ip += 8
			fmt.Fprintf(w, "%08d  %s arity=%d entry=%d\n", start, op, arity, entry)

		default:
			fmt.Fprintf(w, "%08d  %s\n", start, op)
		}
	}
	return nil
}

func safeString(ag *agent.Agent, id uint64) string {
	if ag == nil || id >= uint64(ag.StringCount()) {
		return "?"
	}
	return ag.String(id)
}
