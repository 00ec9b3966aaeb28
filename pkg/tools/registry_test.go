package tools_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/tools"
)

func echo(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

func decode(r llm.ToolResult) tools.Result {
	var res tools.Result
	ExpectWithOffset(1, json.Unmarshal([]byte(r.Output), &res)).To(Succeed())
	return res
}

var _ = Describe("Registry", func() {
	var r *tools.Registry

	BeforeEach(func() {
		r = tools.NewRegistry(nil)
		Expect(r.Register(tools.Tool{Name: "general", Handler: echo})).To(Succeed())
		Expect(r.Register(tools.Tool{Name: "todo_only", Handler: echo, Domains: []memory.Domain{memory.DomainTodo}})).To(Succeed())
		Expect(r.Register(tools.Tool{Name: "travel_only", Handler: echo, Domains: []memory.Domain{memory.DomainTravel}})).To(Succeed())
	})

	Describe("Register", func() {
		It("rejects tools without a name or handler", func() {
			Expect(r.Register(tools.Tool{Handler: echo})).To(MatchError(tools.ErrInvalidTool))
			Expect(r.Register(tools.Tool{Name: "x"})).To(MatchError(tools.ErrInvalidTool))
		})

		It("rejects duplicates", func() {
			Expect(r.Register(tools.Tool{Name: "general", Handler: echo})).To(MatchError(tools.ErrDuplicateTool))
		})

		It("rejects malformed schemas", func() {
			err := r.Register(tools.Tool{Name: "bad", Handler: echo, Parameters: json.RawMessage(`{`)})
			Expect(err).To(MatchError(tools.ErrInvalidTool))
		})

		It("keeps registration order", func() {
			Expect(r.Names()).To(Equal([]string{"general", "todo_only", "travel_only"}))
		})
	})

	Describe("Definitions", func() {
		names := func(defs []llm.ToolDefinition) []string {
			out := make([]string, len(defs))
			for i, d := range defs {
				out[i] = d.Name
			}
			return out
		}

		It("offers every tool without a domain", func() {
			Expect(names(r.Definitions(memory.DomainNone))).To(Equal([]string{"general", "todo_only", "travel_only"}))
		})

		It("offers untagged and matching tools for a domain", func() {
			Expect(names(r.Definitions(memory.DomainTodo))).To(Equal([]string{"general", "todo_only"}))
		})

		It("defaults the parameter schema", func() {
			defs := r.Definitions(memory.DomainNone)
			Expect(json.Valid(defs[0].Parameters)).To(BeTrue())
		})
	})

	Describe("Execute", func() {
		It("wraps handler data in a success envelope", func() {
			out := r.Execute(context.Background(), llm.ToolCall{ID: "c1", Name: "general", Input: map[string]any{"a": "b"}})
			Expect(out.ID).To(Equal("c1"))
			Expect(out.IsError).To(BeFalse())

			res := decode(out)
			Expect(res.Success).To(BeTrue())
			Expect(res.Data).To(HaveKeyWithValue("a", "b"))
		})

		It("reports handler errors as failed results", func() {
			Expect(r.Register(tools.Tool{Name: "broken", Handler: func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("boom")
			}})).To(Succeed())

			out := r.Execute(context.Background(), llm.ToolCall{ID: "c2", Name: "broken"})
			Expect(out.IsError).To(BeTrue())
			res := decode(out)
			Expect(res.Success).To(BeFalse())
			Expect(res.Error).To(Equal("boom"))
		})

		It("reports unknown tools", func() {
			out := r.Execute(context.Background(), llm.ToolCall{ID: "c3", Name: "nope"})
			Expect(out.IsError).To(BeTrue())
			Expect(decode(out).Error).To(ContainSubstring("unknown tool: nope"))
		})
	})
})

var _ = Describe("argument helpers", func() {
	args := map[string]any{
		"s":     "text",
		"blank": "  ",
		"n":     float64(3),
		"frac":  1.5,
		"qn":    "7",
		"b":     true,
	}

	It("reads strings", func() {
		Expect(tools.StringArg(args, "s")).To(Equal("text"))
		_, err := tools.StringArg(args, "blank")
		Expect(err).To(MatchError(tools.ErrInvalidArgument))
		_, err = tools.StringArg(args, "missing")
		Expect(err).To(MatchError(tools.ErrInvalidArgument))
		_, err = tools.StringArg(args, "n")
		Expect(err).To(MatchError(tools.ErrInvalidArgument))
	})

	It("reads integers", func() {
		Expect(tools.IntArg(args, "n", 0)).To(Equal(3))
		Expect(tools.IntArg(args, "qn", 0)).To(Equal(7))
		Expect(tools.IntArg(args, "missing", 5)).To(Equal(5))
		_, err := tools.IntArg(args, "frac", 0)
		Expect(err).To(MatchError(tools.ErrInvalidArgument))
	})

	It("reads floats and bools", func() {
		Expect(tools.FloatArg(args, "frac", 0)).To(Equal(1.5))
		Expect(tools.BoolArg(args, "b", false)).To(BeTrue())
		Expect(tools.BoolArg(args, "missing", true)).To(BeTrue())
		_, err := tools.BoolArg(args, "s", false)
		Expect(err).To(MatchError(tools.ErrInvalidArgument))
	})
})
