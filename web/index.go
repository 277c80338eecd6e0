// Package web renders the HTML demo page served at the root of captchad.
package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/localization"
)

// Base wraps body in the page skeleton. The document language comes from
// localizer.
func Base(title string, body templ.Component, localizer *localization.SimpleLocalizer) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html><html lang="%s"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s</title><style>%s</style></head><body><main><h1>%s</h1>`,
			templ.EscapeString(localizer.T("lang")), templ.EscapeString(title), css, templ.EscapeString(title)); err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// Index is the demo: pick a type, solve the challenge, and see the verify
// result. apiBase is the path prefix of the JSON API.
func Index(localizer *localization.SimpleLocalizer, apiBase string, types []challenge.Type) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<form id="new"><select name="type">`); err != nil {
			return err
		}

		for _, typ := range types {
			if _, err := fmt.Fprintf(w, `<option value="%[1]s">%[1]s</option>`, templ.EscapeString(string(typ))); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(w, `</select> <button type="submit">%s</button></form><section id="challenge"></section><form id="verify" hidden><input name="answer" autocomplete="off"> <button type="submit">%s</button></form><pre id="result"></pre>`,
			templ.EscapeString(localizer.T("demo_new_challenge")),
			templ.EscapeString(localizer.T("demo_verify")),
		); err != nil {
			return err
		}

		base, err := templ.JSONString(apiBase)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, `<script>const apiBase = %s;%s</script>`, base, script)
		return err
	})
}

const css = `body{font-family:sans-serif;max-width:40rem;margin:2rem auto;padding:0 1rem}` +
	`#grid{display:grid;gap:4px}#grid img{width:100%;cursor:pointer;border:3px solid transparent}` +
	`#grid img.picked{border-color:#0a7}.error{color:#b00}`

const script = `
const $ = (s) => document.querySelector(s);
let current = null;

function img(b64, mime) {
  const el = document.createElement("img");
  el.src = "data:" + mime + ";base64," + b64;
  return el;
}

function show(c) {
  const root = $("#challenge");
  const answer = $("#verify [name=answer]");
  const p = c.payload;
  root.replaceChildren();
  answer.value = "";
  answer.type = "text";
  const text = document.createElement("p");
  text.textContent = p.instructions;
  root.append(text);

  switch (c.type) {
  case "math": {
    const q = document.createElement("p");
    q.textContent = p.question;
    root.append(q);
    break;
  }
  case "image-grid": {
    const grid = document.createElement("div");
    grid.id = "grid";
    grid.style.gridTemplateColumns = "repeat(" + p.columns + ", 1fr)";
    const picked = new Set();
    for (const t of p.tiles) {
      const el = img(t.image, t.mimeType);
      el.onclick = () => {
        picked.has(t.id) ? picked.delete(t.id) : picked.add(t.id);
        el.classList.toggle("picked");
        answer.value = [...picked].join(",");
      };
      grid.append(el);
    }
    root.append(grid);
    break;
  }
  case "slider": {
    const wrap = document.createElement("div");
    wrap.style.position = "relative";
    const bg = img(p.background, p.mimeType);
    const piece = img(p.piece, p.mimeType);
    piece.style.position = "absolute";
    piece.style.top = p.pieceY + "px";
    piece.style.left = p.pieceX + "px";
    wrap.append(bg, piece);
    const track = document.createElement("input");
    track.type = "range";
    track.min = 0;
    track.max = 300 - p.pieceWidth;
    track.value = p.pieceX;
    track.oninput = () => {
      piece.style.left = track.value + "px";
      answer.value = track.value;
    };
    root.append(wrap, track);
    answer.type = "hidden";
    break;
  }
  case "audio": {
    const a = document.createElement("audio");
    a.controls = true;
    a.src = "data:" + p.mimeType + ";base64," + p.audio;
    root.append(a);
    break;
  }
  default:
    root.append(img(p.image, p.mimeType));
  }

  $("#verify").hidden = false;
}

$("#new").onsubmit = async (ev) => {
  ev.preventDefault();
  const type = new FormData(ev.target).get("type");
  const resp = await fetch(apiBase + "challenge?type=" + encodeURIComponent(type));
  current = await resp.json();
  $("#result").textContent = "";
  if (!resp.ok) {
    $("#result").textContent = JSON.stringify(current, null, 2);
    return;
  }
  show(current);
};

$("#verify").onsubmit = async (ev) => {
  ev.preventDefault();
  const resp = await fetch(apiBase + "verify", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({captchaId: current.captchaId, answer: $("#verify [name=answer]").value}),
  });
  $("#result").textContent = JSON.stringify(await resp.json(), null, 2);
};
`
