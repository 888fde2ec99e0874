package quiz

import (
	"fmt"
	"math/rand/v2"
)

// Operation is the arithmetic a problem asks for.
type Operation string

const (
	OpAdd       Operation = "+"
	OpSubtract  Operation = "−"
	OpMultiply  Operation = "×"
	OpDivide    Operation = "÷"
	OpRemainder Operation = "mod"
	OpPercent   Operation = "%"
)

// Categories the generator knows about
const (
	CategoryAddition       = "addition"
	CategorySubtraction    = "subtraction"
	CategoryMultiplication = "multiplication"
	CategoryDivision       = "division"
	CategoryPercentages    = "percentages"
)

// Categories lists the supported categories in menu order.
func Categories() []string {
	return []string{
		CategoryAddition,
		CategorySubtraction,
		CategoryMultiplication,
		CategoryDivision,
		CategoryPercentages,
	}
}

// Problem is one generated question with its multiple-choice options.
type Problem struct {
	category string
	focus    string
	left     int
	right    int
	op       Operation
	answer   int
	choices  []int
}

// Getters
func (p *Problem) Category() string { return p.category }
func (p *Problem) Focus() string    { return p.focus }
func (p *Problem) Left() int        { return p.left }
func (p *Problem) Right() int       { return p.right }
func (p *Problem) Op() Operation    { return p.op }
func (p *Problem) Answer() int      { return p.answer }
func (p *Problem) Choices() []int   { return append([]int(nil), p.choices...) }

// Text renders the question.
func (p *Problem) Text() string {
	switch p.op {
	case OpPercent:
		return fmt.Sprintf("What is %d%% of %d?", p.left, p.right)
	case OpRemainder:
		return fmt.Sprintf("What is the remainder of %d ÷ %d?", p.left, p.right)
	default:
		return fmt.Sprintf("%d %s %d = ?", p.left, p.op, p.right)
	}
}

// Hint returns a short strategy tip for the problem's focus.
func (p *Problem) Hint() string {
	switch p.focus {
	case "carrying":
		return "Add the ones first. If they pass 9, carry the ten."
	case "borrowing":
		return "Not enough ones? Borrow a ten from the tens column."
	case "three_digit":
		return "Work column by column: ones, tens, then hundreds."
	case "times_tables":
		return fmt.Sprintf("Count up in steps of %d.", p.left)
	case "two_by_one", "two_by_two":
		return "Split the bigger number into tens and ones, multiply each part, then add."
	case "exact", "two_digit_divisor":
		return fmt.Sprintf("Which number times %d gives %d?", p.right, p.left)
	case "remainders":
		return fmt.Sprintf("Find the biggest multiple of %d that fits, then see what is left.", p.right)
	case "tens":
		return "10% is the number divided by 10."
	case "quarters":
		return "25% is a quarter, 50% is a half."
	case "any":
		return "1% of a hundred-multiple is that multiple divided by 100."
	default:
		return "Count on from the bigger number."
	}
}

// Check reports whether answer is correct.
func (p *Problem) Check(answer int) bool {
	return answer == p.answer
}

// Generator produces problems for a category, difficulty (1..5) and focus.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator. A nil rng uses a randomly seeded source.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// Next generates one problem. Unknown categories fall back to addition and
// unknown focus values to the category's first focus.
func (g *Generator) Next(category string, difficulty int, focus string) *Problem {
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 5 {
		difficulty = 5
	}

	var p *Problem
	switch category {
	case CategorySubtraction:
		p = g.subtraction(difficulty, focus)
	case CategoryMultiplication:
		p = g.multiplication(difficulty, focus)
	case CategoryDivision:
		p = g.division(difficulty, focus)
	case CategoryPercentages:
		p = g.percentage(difficulty, focus)
	default:
		category = CategoryAddition
		p = g.addition(difficulty, focus)
	}
	p.category = category
	p.choices = g.choices(p.answer)
	return p
}

// between returns a random int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) addition(d int, focus string) *Problem {
	var a, b int
	switch focus {
	case "carrying":
		// ones digits always sum past nine
		onesA := g.between(1, 9)
		onesB := g.between(10-onesA, 9)
		a = g.between(1, d)*10 + onesA
		b = g.between(0, d)*10 + onesB
	case "three_digit":
		a = g.between(100, 100+180*d)
		b = g.between(100, 100+180*d)
	default:
		focus = "single_digit"
		a = g.between(1, 4+d)
		b = g.between(1, 4+d)
	}
	return &Problem{focus: focus, left: a, right: b, op: OpAdd, answer: a + b}
}

func (g *Generator) subtraction(d int, focus string) *Problem {
	var a, b int
	switch focus {
	case "borrowing":
		onesB := g.between(1, 9)
		onesA := g.between(0, onesB-1)
		b = g.between(0, d)*10 + onesB
		a = b + g.between(1, d)*10 - onesB + onesA
	case "three_digit":
		a = g.between(200, 200+160*d)
		b = g.between(100, a)
	default:
		focus = "single_digit"
		a = g.between(2, 5+d)
		b = g.between(1, a)
	}
	return &Problem{focus: focus, left: a, right: b, op: OpSubtract, answer: a - b}
}

func (g *Generator) multiplication(d int, focus string) *Problem {
	var a, b int
	switch focus {
	case "two_by_one":
		a = g.between(10, 10+18*d)
		b = g.between(2, 9)
	case "two_by_two":
		a = g.between(10, 10+18*d)
		b = g.between(10, 10+18*d)
	default:
		focus = "times_tables"
		a = g.between(2, 7+d)
		b = g.between(1, 12)
	}
	return &Problem{focus: focus, left: a, right: b, op: OpMultiply, answer: a * b}
}

func (g *Generator) division(d int, focus string) *Problem {
	switch focus {
	case "remainders":
		b := g.between(2, 4+d)
		a := b*g.between(1, 5+2*d) + g.between(1, b-1)
		return &Problem{focus: focus, left: a, right: b, op: OpRemainder, answer: a % b}
	case "two_digit_divisor":
		b := g.between(11, 10+8*d)
		q := g.between(2, 9)
		return &Problem{focus: focus, left: b * q, right: b, op: OpDivide, answer: q}
	default:
		b := g.between(2, 4+d)
		q := g.between(1, 5+2*d)
		return &Problem{focus: "exact", left: b * q, right: b, op: OpDivide, answer: q}
	}
}

func (g *Generator) percentage(d int, focus string) *Problem {
	var pct, of int
	switch focus {
	case "quarters":
		pct = []int{25, 50, 75}[g.rng.IntN(3)]
		of = 4 * g.between(1, 5*d)
	case "any":
		pct = g.between(1, 99)
		of = 100 * g.between(1, d)
	default:
		focus = "tens"
		pct = 10 * g.between(1, 9)
		of = 10 * g.between(1, 4*d)
	}
	return &Problem{focus: focus, left: pct, right: of, op: OpPercent, answer: pct * of / 100}
}

// choices returns four distinct non-negative options including answer, shuffled.
func (g *Generator) choices(answer int) []int {
	seen := map[int]bool{answer: true}
	out := []int{answer}
	offsets := []int{1, -1, 2, -2, 10, -10, 3, -3, 5, -5, 11, -11}
	g.rng.Shuffle(len(offsets), func(i, j int) { offsets[i], offsets[j] = offsets[j], offsets[i] })
	for _, off := range offsets {
		if len(out) == 4 {
			break
		}
		c := answer + off
		if c < 0 || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
