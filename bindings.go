package cxamqp

import (
	"fmt"
)

// setupBindings declares the routing topology for a queue on the given
// channel. The configured rules are applied in order; rules for other queues
// are skipped. A topic rule binds the queue to every pattern it lists. A
// headers rule binds once with the header table and stops further rule
// processing for this queue: only the first matching headers rule is
// honoured, while any number of matching topic rules are. Rules that map to
// no known exchange type are logged and skipped.
func (c *Client) setupBindings(ch Channel, queue string) error {
	logger := c.logger.WithName("bindings").WithValues("queue", queue)
	for _, rule := range c.conf.Bindings {
		if rule.Queue != queue {
			continue
		}
		typ, ok := rule.Type()
		if !ok {
			logger.Error(ErrUnsupportedBinding, "Skipping binding rule", "exchange", rule.Exchange)
			continue
		}
		exchange := rule.ExchangeName(typ)
		err := ch.ExchangeDeclare(exchange, typ.String(), true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declaring exchange %q: %w", exchange, err)
		}
		switch typ {
		case ExchangeTypeTopic:
			for _, topic := range rule.Topics {
				err := ch.QueueBind(queue, topic, exchange, false, nil)
				if err != nil {
					return fmt.Errorf("binding queue to %q on %q: %w", exchange, topic, err)
				}
			}
		case ExchangeTypeHeaders:
			err := ch.QueueBind(queue, "", exchange, false, rule.Headers)
			if err != nil {
				return fmt.Errorf("binding queue to %q: %w", exchange, err)
			}
			return nil
		}
	}
	return nil
}
