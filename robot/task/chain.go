package task

import (
	"github.com/pkg/errors"

	"github.com/eurobot-nav/navcore/robot/actions"
)

// NewChain links one Task per action list, first list first. It returns nil for no lists.
func NewChain(env *Env, lists [][]actions.Action) *Task {
	var head *Task
	for i := len(lists) - 1; i >= 0; i-- {
		head = New(env, lists[i], head)
	}
	return head
}

// ParseChain parses one token list per task and links them.
func ParseChain(env *Env, tokens [][]string) (*Task, error) {
	lists := make([][]actions.Action, 0, len(tokens))
	for i, ts := range tokens {
		as, err := actions.ParseAll(ts)
		if err != nil {
			return nil, errors.Wrapf(err, "task %d", i)
		}
		lists = append(lists, as)
	}
	return NewChain(env, lists), nil
}

// Len counts the tasks from t to the end of the chain.
func (t *Task) Len() int {
	n := 0
	for cur := t; cur != nil; cur = cur.next {
		n++
	}
	return n
}
