package resolver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Chooser：从 N 个带标签的候选中选一个，返回 0 基下标
type Chooser interface {
	Choose(labels []string) (int, error)
}

// FirstChooser：总是选排名第一的候选，供批量/自动调用
type FirstChooser struct{}

func (FirstChooser) Choose(labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, fmt.Errorf("no candidates")
	}
	return 0, nil
}

// TerminalChooser：终端编号列表 + 提示输入
// 约束：空输入选第一项；合法的 1 基序号选对应项；其他输入重复提示，无超时；输入流结束返回 io.ErrUnexpectedEOF。
type TerminalChooser struct {
	In  io.Reader
	Out io.Writer

	sc *bufio.Scanner
}

func (t *TerminalChooser) Choose(labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, fmt.Errorf("no candidates")
	}
	if t.sc == nil {
		t.sc = bufio.NewScanner(t.In)
	}
	for i, l := range labels {
		fmt.Fprintf(t.Out, "\t%d. %s\n", i+1, l)
	}
	for {
		fmt.Fprint(t.Out, "\tSelect choice [1] >")
		if !t.sc.Scan() {
			if err := t.sc.Err(); err != nil {
				return 0, err
			}
			return 0, io.ErrUnexpectedEOF
		}
		in := strings.TrimSpace(t.sc.Text())
		if in == "" {
			return 0, nil
		}
		if n, err := strconv.Atoi(in); err == nil && n >= 1 && n <= len(labels) {
			return n - 1, nil
		}
	}
}

// FuncChooser：以函数实现 Chooser
type FuncChooser func(labels []string) (int, error)

func (f FuncChooser) Choose(labels []string) (int, error) { return f(labels) }
