// Package config loads planning problem documents.
//
// # Overview
//
// A problem document describes a planning problem (types, objects, fluents,
// action schemas, initial state and goals) plus an optional planner section
// with search settings. Documents may be written in YAML, JSON or CUE; the
// format is chosen from the file extension.
//
// Loading happens in three passes, and every issue found is reported together
// in a *DocumentError:
//
//   - decoding, rejecting unknown fields
//   - struct tag validation with go-playground/validator
//   - unification with the embedded CUE #Document schema
//
// Document.ToProblem then runs the semantic checks of model.Problem.Validate
// (unknown types, arities, expression syntax) before the problem is planned.
//
// # Usage Example
//
//	loader, err := config.NewLoader(log.Logger)
//	if err != nil {
//	    return err
//	}
//
//	doc, err := loader.Load("robot.yaml")
//	if err != nil {
//	    return err
//	}
//
//	problem, err := doc.ToProblem()
//	if err != nil {
//	    return err
//	}
//
//	cfg := doc.Planner.Apply(engine.DefaultConfig())
//
// # Watching
//
// Loader.Watch reloads a document whenever its file is written, debouncing
// bursts of events from editors:
//
//	err := loader.Watch(ctx, "robot.yaml", 0, func(doc *config.Document, err error) {
//	    if err != nil {
//	        log.Warn().Err(err).Msg("invalid problem")
//	        return
//	    }
//	    replan(doc)
//	})
package config
