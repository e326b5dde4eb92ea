package domain

// Pruneable is the outcome of one analysis pass: the entities selected for
// deletion, in discovery order.
type Pruneable struct {
	Models []ModelVersion
	Runs   []Run
}

func (p Pruneable) Empty() bool {
	return len(p.Models) == 0 && len(p.Runs) == 0
}
