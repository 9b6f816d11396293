package translate

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// Tree renders the block as a tree of packets. With ops set, every packet
// also lists the IR it was translated to.
func (b *Block) Tree(ops bool) treeprint.Tree {
	tree := treeprint.NewWithRoot(fmt.Sprintf(
		"block 0x%08x..0x%08x exit=%s packets=%d insns=%d hvx=%d",
		b.PC, b.EndPC, b.Exit, b.NumPackets, b.NumInsns, b.NumHVXInsns,
	))
	if b.Flags.TightLoop {
		tree.AddMetaNode("flags", "tight_loop")
	}
	if b.Exit == EpilogueException {
		tree.AddMetaNode("cause", fmt.Sprintf("0x%03x", b.ExitCause))
	}

	for i := range b.Packets {
		p := &b.Packets[i]

		branch := tree.AddBranch(fmt.Sprintf("packet 0x%08x { %s }", p.PC, strings.Join(p.Insns, "; ")))
		branch.AddNode(fmt.Sprintf("need_commit=%v hazard=%v", p.NeedCommit, p.Hazard))
		if len(p.RegLog) > 0 {
			branch.AddNode(fmt.Sprintf("reg_log=%v", p.RegLog))
		}
		if len(p.PredLog) > 0 {
			branch.AddNode(fmt.Sprintf("pred_log=%v", p.PredLog))
		}
		if len(p.StoreOrder) > 0 {
			branch.AddNode(fmt.Sprintf("store_order=%v", p.StoreOrder))
		}
		if p.Epilogue != EpilogueNone {
			branch.AddNode(fmt.Sprintf("epilogue=%s", p.Epilogue))
		}

		if !ops || b.Unit == nil {
			continue
		}
		list := branch.AddBranch(fmt.Sprintf("ops [%d, %d)", p.OpStart, p.OpEnd))
		for j := p.OpStart; j < p.OpEnd; j++ {
			list.AddNode(b.Unit.Ops[j].String())
		}
	}

	return tree
}
