package remote

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// serializeScript walks the live DOM into the wire shape. Elements the dev
// server injected are skipped.
const serializeScript = `(() => {
	const serialize = (node) => {
		if (node.nodeType === Node.TEXT_NODE) {
			return { type: "text", content: node.nodeValue };
		}
		const attributes = {};
		for (const attr of node.attributes) {
			attributes[attr.name] = attr.value;
		}
		const children = [];
		for (const child of node.childNodes) {
			if (child.nodeType === Node.ELEMENT_NODE && child.hasAttribute("data-livesync")) {
				continue;
			}
			if (child.nodeType === Node.ELEMENT_NODE || child.nodeType === Node.TEXT_NODE) {
				children.push(serialize(child));
			}
		}
		return { type: "element", tag: node.tagName.toLowerCase(), attributes, children };
	};
	return serialize(document.documentElement);
})()`

// Capture serializes the DOM of the current page into root
func Capture(root *Node) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.Evaluate(serializeScript, root).Do(ctx); err != nil {
			return fmt.Errorf("failed to serialize DOM: %w", err)
		}
		return nil
	})
}

// Snapshot loads url in the browser behind ctx and returns its rendered tree
func Snapshot(ctx context.Context, url string) (*Node, error) {
	var root Node
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		Capture(&root),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", url, err)
	}
	return &root, nil
}
