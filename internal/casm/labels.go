package casm

// resolveLabels performs the two-pass PC assignment of spec.md §4.8.3:
// pass 1 walks the instruction stream accumulating each instruction's
// Width to find every label's tentative PC, since a jump or immediate
// load can itself widen the instructions between a label definition and
// its use; pass 2 rewrites every jump/call/load_const_addr operand from
// its symbolic Label to the now-known concrete PC. Rodata blobs are laid
// out immediately after the code segment (spec.md §4.8.4), each at the
// offset its full length implies; only the last blob, which nothing
// follows, is trimmed of its trailing zero run.
func resolveLabels(p *Program) {
	pos := map[string]int{}
	pc := 0
	for i := range p.Instructions {
		for _, l := range p.Instructions[i].DefinedLabels {
			pos[l] = pc
		}
		pc += p.Instructions[i].Width()
	}
	codeEnd := pc

	offset := codeEnd
	for i := range p.Blobs {
		if i == len(p.Blobs)-1 {
			trimTrailingZeros(&p.Blobs[i])
		}
		p.Blobs[i].Offset = offset
		pos[blobKey(p.Blobs[i].Label)] = offset
		offset += len(p.Blobs[i].Values)
	}

	for i := range p.Instructions {
		in := &p.Instructions[i]
		if in.Label == "" {
			continue
		}
		if target, ok := pos[in.Label]; ok {
			in.PC = target
			continue
		}
		if target, ok := pos[blobKey(in.Label)]; ok {
			in.PC = target
		}
	}

	for i := range p.Entrypoints {
		if target, ok := pos[funcLabel(p.Entrypoints[i].Name)]; ok {
			p.Entrypoints[i].PC = target
		}
	}
}

func blobKey(label string) string { return "blob$" + label }

// trimTrailingZeros drops a blob's trailing run of zero elements: a
// zero-initialized rodata tail reads the same as the VM's default-zero
// memory as long as nothing is placed after it, so storing it is wasted
// space (spec.md §4.8.4). resolveLabels applies it to the last blob only.
func trimTrailingZeros(b *Blob) {
	n := len(b.Values)
	for n > 0 && b.Values[n-1] == 0 {
		n--
	}
	b.Values = b.Values[:n]
}
