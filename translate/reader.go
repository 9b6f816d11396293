package translate

import "github.com/sarchlab/hexdbt/insts"

// CodeReader fetches guest code words.
type CodeReader interface {
	ReadWord(addr uint32) (uint32, error)
}

// ReadPacketWords reads the words of the packet at pc. It returns no words
// when no packet end marker is found within insts.PacketWordsMax words.
func ReadPacketWords(mem CodeReader, pc uint32) ([]uint32, error) {
	words := make([]uint32, 0, insts.PacketWordsMax)

	for i := range insts.PacketWordsMax {
		w, err := mem.ReadWord(pc + uint32(4*i))
		if err != nil {
			return nil, err
		}
		words = append(words, w)
		if insts.IsPacketEnd(w) {
			return words, nil
		}
	}

	return nil, nil
}

// PacketCrossesPage reports whether a packet of nwords words at pc extends
// past the end of its page.
func PacketCrossesPage(pc uint32, nwords int, pageSize uint32) bool {
	pageStart := pc &^ (pageSize - 1)
	end := uint64(pc) + uint64(4*nwords)
	return end > uint64(pageStart)+uint64(pageSize)
}

// NextPacketMayCrossPage reports whether the packet at pc would cross into
// the next page. Packets that cannot be read are treated as crossing.
func NextPacketMayCrossPage(mem CodeReader, pc, pageSize uint32) bool {
	words, err := ReadPacketWords(mem, pc)
	if err != nil || len(words) == 0 {
		return true
	}
	return PacketCrossesPage(pc, len(words), pageSize)
}
