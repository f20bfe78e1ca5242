package actors

import (
	"context"

	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/workspace"
)

func asEvaluator(f evalFunc) actorengine.Evaluator {
	return actorengine.EvaluatorFunc(func(ctx context.Context, ws workspace.Workspace) (actorengine.Eval, error) {
		solution, feedback, err := f(ctx, ws)
		if err != nil {
			return actorengine.Eval{}, err
		}
		return actorengine.Eval{Solution: solution, Feedback: feedback}, nil
	})
}
