// Package router fans committed schema payloads out to registered consumers.
package router

import (
	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
	"github.com/appforge-ai/console-api/pkg/metrics"
)

// ObjectConsumer receives the objects section of an admin payload.
type ObjectConsumer func(objects []model.ObjectDef)

// WorkflowConsumer receives the workflows section of an admin payload.
type WorkflowConsumer func(workflows []model.WorkflowDef)

// LayoutConsumer receives the layout section of an admin payload.
type LayoutConsumer func(layout []model.LayoutSection)

// Router dispatches payload sections of committed admin results to whichever
// consumers registered interest. It holds no state besides the consumer
// lists; dispatch is synchronous and fire-and-forget.
type Router struct {
	logger *logger.Logger

	objectConsumers   []ObjectConsumer
	workflowConsumers []WorkflowConsumer
	layoutConsumers   []LayoutConsumer
}

// New creates an empty router.
func New(log *logger.Logger) *Router {
	return &Router{logger: log}
}

// OnObjects registers an object-list consumer.
func (r *Router) OnObjects(fn ObjectConsumer) {
	r.objectConsumers = append(r.objectConsumers, fn)
}

// OnWorkflows registers a workflow-list consumer.
func (r *Router) OnWorkflows(fn WorkflowConsumer) {
	r.workflowConsumers = append(r.workflowConsumers, fn)
}

// OnLayout registers a layout consumer.
func (r *Router) OnLayout(fn LayoutConsumer) {
	r.layoutConsumers = append(r.layoutConsumers, fn)
}

// Dispatch forwards each present payload section of an admin result to its
// consumers. Absent sections are normal and not dispatched. A panicking
// consumer is isolated: the commit stands, the failure is logged, and
// dispatch continues with the next consumer.
func (r *Router) Dispatch(result *model.StructuredResult) {
	if result == nil || result.Kind != model.KindAdmin || result.Payload == nil {
		return
	}
	p := result.Payload

	if len(p.Objects) > 0 {
		metrics.PayloadSectionsTotal.WithLabelValues("objects").Inc()
		for _, fn := range r.objectConsumers {
			r.safeDispatch("objects", func() { fn(p.Objects) })
		}
	}
	if len(p.Workflows) > 0 {
		metrics.PayloadSectionsTotal.WithLabelValues("workflows").Inc()
		for _, fn := range r.workflowConsumers {
			r.safeDispatch("workflows", func() { fn(p.Workflows) })
		}
	}
	if len(p.Layout) > 0 {
		metrics.PayloadSectionsTotal.WithLabelValues("layout").Inc()
		for _, fn := range r.layoutConsumers {
			r.safeDispatch("layout", func() { fn(p.Layout) })
		}
	}
}

func (r *Router) safeDispatch(section string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.DispatchFailuresTotal.WithLabelValues(section).Inc()
			r.logger.Error("payload consumer failed",
				zap.String("section", section),
				zap.Any("panic", rec),
			)
		}
	}()
	fn()
}
